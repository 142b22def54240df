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

// Package arena holds entities the relation collector needs to keep around
// across both of its passes. It plays the role of the byte arena the
// original collector compacts in place, but since Go entities are
// garbage-collected values rather than bytes at a fixed offset, the arena is
// index-based: Delete tombstones a slot and PurgeDeleted compacts the
// backing slice, calling back with each survivor's old and new index so a
// caller holding those indices (the relation collector's MemberMeta
// entries) can fix them up.
package arena

import "osmstream.dev/pbf/model"

// MoveFunc is called once per surviving entity whose index changes during
// PurgeDeleted, after it has already moved to its new index.
type MoveFunc func(oldIndex, newIndex int)

// Buffer is an append-mostly store of model.Entity values addressed by
// index. It is not safe for concurrent use; callers serialize access to it
// themselves (the relation collector does this by construction, since both
// of its passes run to completion before the next starts).
type Buffer struct {
	items   []model.Entity
	deleted []bool
	ndel    int
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds e to the end of the buffer and returns its index.
func (b *Buffer) Append(e model.Entity) int {
	b.items = append(b.items, e)
	b.deleted = append(b.deleted, false)

	return len(b.items) - 1
}

// Commit confirms that the entity appended at index is staying in the
// buffer. libosmium's byte arena needs this as a real operation: an item is
// written into the buffer's tail in pieces, and committing is what advances
// the buffer's high-water mark past it so a concurrent reader never sees a
// half-written item. This Buffer has no such partial-write window — Append
// copies the whole model.Entity value in at index time — so Commit is a
// no-op kept only to preserve the Append/Commit/Rollback contract spec.md
// §4.9 describes; it still validates index the way Get and Delete do, so a
// caller that mismatches an index gets the same bounds behavior either way.
func (b *Buffer) Commit(index int) {
	if index < 0 || index >= len(b.items) {
		return
	}
}

// Rollback removes every entity appended at or after index, for the case
// where a caller discovers, immediately after appending, that it did not
// need to keep the entity after all. index must be the index returned by
// the Append call being undone.
func (b *Buffer) Rollback(index int) {
	if index < 0 || index >= len(b.items) {
		return
	}

	b.items = b.items[:index]
	b.deleted = b.deleted[:index]
}

// Get returns the entity at index, or nil if that slot has been deleted.
func (b *Buffer) Get(index int) model.Entity {
	if index < 0 || index >= len(b.items) || b.deleted[index] {
		return nil
	}

	return b.items[index]
}

// Delete tombstones the entity at index. The slot is not reclaimed until the
// next PurgeDeleted.
func (b *Buffer) Delete(index int) {
	if index < 0 || index >= len(b.items) || b.deleted[index] {
		return
	}

	b.deleted[index] = true
	b.items[index] = nil
	b.ndel++
}

// Len returns the number of slots in the buffer, including tombstoned ones.
func (b *Buffer) Len() int {
	return len(b.items)
}

// DeletedLen returns the number of tombstoned slots awaiting a purge.
func (b *Buffer) DeletedLen() int {
	return b.ndel
}

// PurgeDeleted compacts out every tombstoned slot, calling onMove for each
// surviving entity that changes index so the caller can fix up any indices
// it is holding onto.
func (b *Buffer) PurgeDeleted(onMove MoveFunc) {
	if b.ndel == 0 {
		return
	}

	write := 0

	for read := 0; read < len(b.items); read++ {
		if b.deleted[read] {
			continue
		}

		if write != read {
			b.items[write] = b.items[read]
			b.deleted[write] = false

			if onMove != nil {
				onMove(read, write)
			}
		}

		write++
	}

	b.items = b.items[:write]
	b.deleted = b.deleted[:write]
	b.ndel = 0
}
