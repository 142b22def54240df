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

package decoder

import (
	"fmt"
	"time"

	"osmstream.dev/pbf/internal/pb"
	"osmstream.dev/pbf/model"
)

// ParsePrimitiveBlock decodes a PrimitiveBlock's bytes into entities,
// skipping any PrimitiveGroup whose kind is not granted by mask before it
// allocates anything for that group's members.
func ParsePrimitiveBlock(raw []byte, mask model.EntityMask) ([]model.Entity, error) {
	blk, err := pb.UnmarshalPrimitiveBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("decoder: unmarshal primitive block: %w", err)
	}

	c := newBlockContext(blk)

	var entities []model.Entity

	for _, pg := range blk.PrimitiveGroup {
		if mask.Has(model.NODE) {
			entities = append(entities, c.decodeNodes(pg.Nodes)...)
			entities = append(entities, c.decodeDenseNodes(pg.Dense)...)
		}

		if mask.Has(model.WAY) {
			entities = append(entities, c.decodeWays(pg.Ways)...)
		}

		if mask.Has(model.RELATION) {
			entities = append(entities, c.decodeRelations(pg.Relations)...)
		}
	}

	return entities, nil
}

type blockContext struct {
	strings         []string
	granularity     int64
	latOffset       int64
	lonOffset       int64
	dateGranularity int32
}

func newBlockContext(blk *pb.PrimitiveBlock) *blockContext {
	return &blockContext{
		strings:         blk.StringTable.S,
		granularity:     int64(blk.Granularity),
		latOffset:       blk.LatOffset,
		lonOffset:       blk.LonOffset,
		dateGranularity: blk.DateGranularity,
	}
}

func (c *blockContext) str(i uint32) string {
	if int(i) >= len(c.strings) {
		return ""
	}

	return c.strings[i]
}

func (c *blockContext) decodeNodes(nodes []*pb.Node) []model.Entity {
	entities := make([]model.Entity, len(nodes))

	for i, n := range nodes {
		entities[i] = &model.Node{
			ID:   model.ID(n.ID),
			Tags: c.decodeTags(n.Keys, n.Vals),
			Info: c.decodeInfo(n.Info),
			Lat:  model.ToDegrees(c.latOffset, int32(c.granularity), n.Lat),
			Lon:  model.ToDegrees(c.lonOffset, int32(c.granularity), n.Lon),
		}
	}

	return entities
}

func (c *blockContext) decodeDenseNodes(dense *pb.DenseNodes) []model.Entity {
	if dense == nil {
		return nil
	}

	entities := make([]model.Entity, len(dense.ID))

	tic := c.newTagsContext(dense.KeysVals)
	dic := c.newDenseInfoContext(dense.DenseInfo)

	var id, lat, lon int64

	for i := range dense.ID {
		id += dense.ID[i]
		lat += dense.Lat[i]
		lon += dense.Lon[i]

		entities[i] = &model.Node{
			ID:   model.ID(id),
			Tags: tic.decodeTags(),
			Info: dic.decodeInfo(i),
			Lat:  model.ToDegrees(c.latOffset, int32(c.granularity), lat),
			Lon:  model.ToDegrees(c.lonOffset, int32(c.granularity), lon),
		}
	}

	return entities
}

func (c *blockContext) decodeWays(ways []*pb.Way) []model.Entity {
	entities := make([]model.Entity, len(ways))

	for i, w := range ways {
		nodeIDs := make([]model.ID, len(w.Refs))

		var ref int64

		for j, delta := range w.Refs {
			ref += delta
			nodeIDs[j] = model.ID(ref)
		}

		entities[i] = &model.Way{
			ID:      model.ID(w.ID),
			Tags:    c.decodeTags(w.Keys, w.Vals),
			NodeIDs: nodeIDs,
			Info:    c.decodeInfo(w.Info),
		}
	}

	return entities
}

func (c *blockContext) decodeRelations(relations []*pb.Relation) []model.Entity {
	entities := make([]model.Entity, len(relations))

	for i, r := range relations {
		entities[i] = &model.Relation{
			ID:      model.ID(r.ID),
			Tags:    c.decodeTags(r.Keys, r.Vals),
			Info:    c.decodeInfo(r.Info),
			Members: c.decodeMembers(r),
		}
	}

	return entities
}

func (c *blockContext) decodeMembers(r *pb.Relation) []model.Member {
	members := make([]model.Member, len(r.MemIDs))

	var memID int64

	for i := range r.MemIDs {
		memID += r.MemIDs[i]

		members[i] = model.Member{
			ID:   model.ID(memID),
			Type: decodeMemberType(r.Types[i]),
			Role: c.str(uint32(r.RolesSID[i])),
		}
	}

	return members
}

func (c *blockContext) decodeTags(keyIDs, valIDs []uint32) map[string]string {
	if len(keyIDs) == 0 {
		return nil
	}

	tags := make(map[string]string, len(keyIDs))

	for i, keyID := range keyIDs {
		tags[c.str(keyID)] = c.str(valIDs[i])
	}

	return tags
}

func (c *blockContext) decodeInfo(info *pb.Info) *model.Info {
	out := &model.Info{Visible: true}
	if info == nil {
		return out
	}

	out.Version = info.Version
	out.Timestamp = c.toTimestamp(info.Timestamp)
	out.Changeset = info.Changeset
	out.UID = model.UID(info.UID)
	out.User = c.str(uint32(info.UserSID))

	if info.Visible != nil {
		out.Visible = *info.Visible
	}

	return out
}

func (c *blockContext) toTimestamp(units int64) time.Time {
	return time.UnixMilli(units * int64(c.dateGranularity)).UTC()
}

type denseInfoContext struct {
	*blockContext

	di *pb.DenseInfo

	version   int32
	timestamp int64
	changeset int64
	uid       int32
	userSid   int32
}

func (c *blockContext) newDenseInfoContext(di *pb.DenseInfo) *denseInfoContext {
	return &denseInfoContext{blockContext: c, di: di}
}

func (dic *denseInfoContext) decodeInfo(i int) *model.Info {
	if dic.di == nil {
		return &model.Info{Visible: true}
	}

	dic.version += dic.di.Version[i]
	dic.uid += dic.di.UID[i]
	dic.timestamp += dic.di.Timestamp[i]
	dic.changeset += dic.di.Changeset[i]
	dic.userSid += dic.di.UserSID[i]

	info := &model.Info{
		Version:   dic.version,
		UID:       model.UID(dic.uid),
		Timestamp: dic.toTimestamp(dic.timestamp),
		Changeset: dic.changeset,
		User:      dic.str(uint32(dic.userSid)),
		Visible:   true,
	}

	if dic.di.Visible != nil {
		info.Visible = dic.di.Visible[i]
	}

	return info
}

type tagsContext struct {
	strings []string
	i       int
	keyVals []int32
}

func (c *blockContext) newTagsContext(keyVals []int32) *tagsContext {
	return &tagsContext{strings: c.strings, keyVals: keyVals}
}

func (tic *tagsContext) decodeTags() map[string]string {
	if tic.keyVals == nil {
		return nil
	}

	var tags map[string]string

	i := tic.i

	for i < len(tic.keyVals) && tic.keyVals[i] != 0 {
		if tags == nil {
			tags = make(map[string]string)
		}

		key := tic.keyVals[i]
		val := tic.keyVals[i+1]

		var keyStr, valStr string
		if int(key) < len(tic.strings) {
			keyStr = tic.strings[key]
		}

		if int(val) < len(tic.strings) {
			valStr = tic.strings[val]
		}

		tags[keyStr] = valStr
		i += 2
	}

	tic.i = i + 1

	return tags
}

func decodeMemberType(mt pb.RelationMemberType) model.EntityType {
	switch mt {
	case pb.MemberNode:
		return model.NODE
	case pb.MemberWay:
		return model.WAY
	case pb.MemberRelation:
		return model.RELATION
	default:
		return model.NODE
	}
}
