// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

// EntityMask is a bitset of EntityType values used to select which kinds of
// entity a reader should decode. Skipping an ungranted primitive group
// avoids allocating the entities it contains.
type EntityMask uint8

const (
	MaskNode EntityMask = 1 << iota
	MaskWay
	MaskRelation
	MaskChangeset

	MaskNone EntityMask = 0
	MaskAll  EntityMask = MaskNode | MaskWay | MaskRelation | MaskChangeset
)

// Has reports whether t is granted by the mask.
func (m EntityMask) Has(t EntityType) bool {
	switch t {
	case NODE:
		return m&MaskNode != 0
	case WAY:
		return m&MaskWay != 0
	case RELATION:
		return m&MaskRelation != 0
	case CHANGESET:
		return m&MaskChangeset != 0
	default:
		return false
	}
}
