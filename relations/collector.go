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

// Package relations assembles complete relations — a relation together with
// every one of its members, resolved to the actual node/way/relation rather
// than just an id — out of a file that stores relations and their members
// in no particular order relative to each other. It does this in two passes
// over the source: Pass1 records which relations to keep and which of their
// members to wait for, Pass2 walks the file again and hands each matching
// node, way, or relation to whichever relation(s) are waiting on it.
package relations

import (
	"context"
	"errors"
	"io"
	"sort"

	"osmstream.dev/pbf/internal/arena"
	"osmstream.dev/pbf/model"
)

// purgeThreshold bounds how many completed relations accumulate before the
// collector compacts its member buffer. The number itself is not load
// bearing; it only trades peak memory against how often a compaction pass
// runs. libosmium's own relations::Collector uses the same thousand-relation
// threshold for the equivalent compaction of its members buffer.
const purgeThreshold = 1000

// Predicate decides which relations the collector keeps and which of a kept
// relation's members it should wait for. A member the predicate does not
// keep is simply never resolved; the relation completes once every member it
// does keep has been found.
type Predicate interface {
	KeepRelation(r *model.Relation) bool
	KeepMember(rel RelationHandle, m model.Member) bool
}

// Sink receives the results of a Collector run: every node, way, and
// relation not referenced by a kept relation, every relation that completed,
// and a final Done signal.
type Sink interface {
	NodeNotInAnyRelation(n *model.Node)
	WayNotInAnyRelation(w *model.Way)
	RelationNotInAnyRelation(r *model.Relation)

	// CompleteRelation reports a relation every one of whose tracked
	// members has been resolved. rel.Members() is only good for the
	// duration of this call: the member buffer entries it reads from are
	// released as soon as no other relation is still waiting on them,
	// which can happen as a direct result of this relation completing.
	CompleteRelation(rel RelationHandle)
	Done()
}

// ReaderFactory opens a fresh reader over the same source. The collector
// needs one for Pass1 and a second, independent one for Pass2; a single
// reader's source is not guaranteed to support rewinding in the way a
// two-pass algorithm needs, so the caller supplies the factory instead.
type ReaderFactory func(context.Context) (Decoder, error)

// Decoder is the subset of *pbf.Reader the collector drives. Taking an
// interface here, rather than importing the root package's concrete Reader,
// keeps this package usable against anything that can decode entities in
// file order — including a fake source in a test.
type Decoder interface {
	Decode(ctx context.Context) (model.Entity, error)
	Close() error
}

type relationMeta struct {
	needMembers int
}

func (m *relationMeta) gotOneMember()       { m.needMembers-- }
func (m *relationMeta) hasAllMembers() bool { return m.needMembers == 0 }

// memberMeta is one (member-kind, member-id) entry the collector is waiting
// to resolve on behalf of relationIdx/memberPos. bufferOffset is -1 until
// Pass2 observes a matching object, at which point it holds that object's
// offset into the collector's member buffer — the same field libosmium's
// MemberMeta carries, for the same reason: so a later compaction of the
// member buffer can find every meta entry pointing at a relocated slot.
type memberMeta struct {
	id           model.ID
	relationIdx  int
	memberPos    int
	bufferOffset int
}

// RelationHandle identifies a relation the collector is tracking. It is
// cheap to copy and stays valid for the duration of the KeepMember or
// CompleteRelation call it was handed to.
type RelationHandle struct {
	c   *Collector
	idx int
}

// Relation returns the handle's underlying relation.
func (h RelationHandle) Relation() *model.Relation {
	r, _ := h.c.relations.Get(h.idx).(*model.Relation)

	return r
}

// Members returns the handle's relation's members, resolved to the actual
// entity where the collector found one and nil where it did not (either the
// predicate declined to track that member, or Pass2 never encountered it).
// Each resolved entity lives in the collector's member buffer exactly once
// no matter how many relations reference it; Members fetches it by the
// buffer offset recorded for this position.
//
// Call this synchronously from within Sink.CompleteRelation. A member's
// buffer slot is reclaimed the moment the last relation waiting on it
// completes, which may be this call returning; a handle held past its
// CompleteRelation callback can see Members shrink out from under it.
func (h RelationHandle) Members() []model.Entity {
	offsets := h.c.resolvedOffsets[h.idx]
	if offsets == nil {
		return nil
	}

	out := make([]model.Entity, len(offsets))

	for i, off := range offsets {
		if off < 0 {
			continue
		}

		out[i] = h.c.members.Get(off)
	}

	return out
}

// IncompleteRelations returns every relation the collector kept but that
// never completed: Pass2 never supplied at least one of the members the
// predicate asked it to wait for. These relations simply remain in the
// relation buffer and are the caller's problem to do something with, or
// not. Call it after Pass2 and before Done: Done clears the bookkeeping it
// reads, so afterwards it returns nothing.
func (c *Collector) IncompleteRelations() []*model.Relation {
	var out []*model.Relation

	for i := 0; i < c.relations.Len(); i++ {
		if c.relationMetas[i] == nil {
			continue
		}

		r, ok := c.relations.Get(i).(*model.Relation)
		if ok {
			out = append(out, r)
		}
	}

	return out
}

// Collector runs the two-pass relation assembly algorithm.
type Collector struct {
	pred Predicate
	sink Sink

	// relations holds every relation the predicate kept, for the lifetime
	// of the Collector. A relation's slot is never tombstoned or
	// compacted once it completes — relationMetas, not the buffer, is
	// what tells IncompleteRelations and purging apart complete from
	// incomplete — so a RelationHandle's Relation() stays valid for as
	// long as the Collector does. libosmium's own Collector never purges
	// its relations buffer either, only its members buffer.
	relations *arena.Buffer

	// members holds every resolved member object, appended once the
	// first time Pass2 observes it and tombstoned once every relation
	// waiting on it has completed. The same member id can be referenced
	// by many relations, so this buffer, not the relation buffer, is the
	// one periodically compacted.
	members *arena.Buffer

	relationMetas map[int]*relationMeta

	// resolvedOffsets[relIdx] has one entry per r.Members: the member
	// buffer offset resolved for that position, or -1 if the predicate
	// never asked to track it or Pass2 never supplied it.
	resolvedOffsets map[int][]int

	// memberRefs[offset] counts how many still-incomplete relations are
	// waiting on the member buffer entry at offset. It reaches zero, and
	// the entry is tombstoned, exactly when the last relation expecting
	// it completes.
	memberRefs map[int]int

	deletedRel map[int]bool

	// membersMeta[t] holds, for entity type t, the members of every
	// tracked relation whose Type is t, sorted by id once Pass1 finishes
	// so Pass2 can binary-search it.
	membersMeta [4][]memberMeta

	completeCount int
}

// NewCollector creates a Collector that uses pred to decide what to track
// and reports results to sink.
func NewCollector(pred Predicate, sink Sink) *Collector {
	return &Collector{
		pred:            pred,
		sink:            sink,
		relations:       arena.New(),
		members:         arena.New(),
		relationMetas:   make(map[int]*relationMeta),
		resolvedOffsets: make(map[int][]int),
		memberRefs:      make(map[int]int),
		deletedRel:      make(map[int]bool),
	}
}

// AddRelation runs pred over r and, if kept, starts tracking whichever of
// its members pred also keeps. A relation pred keeps but that ends up with
// no tracked members (either it has none, or KeepMember declined every one)
// is dropped immediately: there is nothing left to wait for, so it never
// completes through the normal resolution path.
func (c *Collector) AddRelation(r *model.Relation) {
	if !c.pred.KeepRelation(r) {
		return
	}

	idx := c.relations.Append(r)
	handle := RelationHandle{c: c, idx: idx}

	need := 0

	for pos, m := range r.Members {
		if int(m.Type) >= len(c.membersMeta) {
			continue
		}

		if c.pred.KeepMember(handle, m) {
			c.membersMeta[m.Type] = append(c.membersMeta[m.Type], memberMeta{
				id:           m.ID,
				relationIdx:  idx,
				memberPos:    pos,
				bufferOffset: -1,
			})

			need++
		}
	}

	if need == 0 {
		c.relations.Rollback(idx)

		return
	}

	c.relations.Commit(idx)

	c.relationMetas[idx] = &relationMeta{needMembers: need}
}

func (c *Collector) sortMemberMeta() {
	for t := range c.membersMeta {
		metas := c.membersMeta[t]
		sort.Slice(metas, func(i, j int) bool { return metas[i].id < metas[j].id })
	}
}

// findAndAddObject binary-searches the member metadata for t for every
// tracked relation waiting on id e.GetID(). If at least one of them is still
// incomplete, e is appended to the member buffer exactly once and every
// waiting relation is handed that one offset, completing any relation that
// was waiting on nothing else. It reports whether e was a member of at
// least one tracked relation, live or already complete.
func (c *Collector) findAndAddObject(t model.EntityType, e model.Entity) bool {
	metas := c.membersMeta[t]
	id := e.GetID()

	lo := sort.Search(len(metas), func(i int) bool { return metas[i].id >= id })

	hi := lo
	for hi < len(metas) && metas[hi].id == id {
		hi++
	}

	if lo == hi {
		return false
	}

	active := 0

	for i := lo; i < hi; i++ {
		if c.relationMetas[metas[i].relationIdx] != nil {
			active++
		}
	}

	if active > 0 {
		offset := c.members.Append(e)
		c.members.Commit(offset)
		c.memberRefs[offset] = active

		for i := lo; i < hi; i++ {
			rm := c.relationMetas[metas[i].relationIdx]
			if rm == nil {
				continue
			}

			metas[i].bufferOffset = offset
			c.setResolvedOffset(metas[i].relationIdx, metas[i].memberPos, offset)

			rm.gotOneMember()

			if rm.hasAllMembers() {
				c.completeRelation(metas[i].relationIdx)
			}
		}
	}

	return true
}

func (c *Collector) setResolvedOffset(relIdx, pos, offset int) {
	list := c.resolvedOffsets[relIdx]
	if list == nil {
		rel, _ := c.relations.Get(relIdx).(*model.Relation)
		if rel == nil {
			return
		}

		list = make([]int, len(rel.Members))
		for i := range list {
			list[i] = -1
		}
	}

	list[pos] = offset
	c.resolvedOffsets[relIdx] = list
}

// completeRelation reports relIdx as done and releases every member buffer
// entry it was the last relation waiting on. Its own slot in the relation
// buffer is left alone; relations is never compacted.
func (c *Collector) completeRelation(idx int) {
	c.sink.CompleteRelation(RelationHandle{c: c, idx: idx})

	for _, off := range c.resolvedOffsets[idx] {
		if off < 0 {
			continue
		}

		c.memberRefs[off]--

		if c.memberRefs[off] <= 0 {
			delete(c.memberRefs, off)
			c.members.Delete(off)
		}
	}

	delete(c.relationMetas, idx)
	delete(c.resolvedOffsets, idx)

	c.deletedRel[idx] = true
	c.completeCount++

	c.possiblyPurgeDeletedMembers()
}

// possiblyPurgeDeletedMembers drops member metadata belonging to relations
// that have already completed and compacts the member buffer, once enough
// completions have piled up to be worth the pass.
func (c *Collector) possiblyPurgeDeletedMembers() {
	if c.completeCount <= purgeThreshold {
		return
	}

	c.completeCount = 0

	for t := range c.membersMeta {
		kept := c.membersMeta[t][:0]

		for _, m := range c.membersMeta[t] {
			if !c.deletedRel[m.relationIdx] {
				kept = append(kept, m)
			}
		}

		c.membersMeta[t] = kept
	}

	c.deletedRel = make(map[int]bool)

	c.members.PurgeDeleted(c.movingInMemberBuffer)
}

// movingInMemberBuffer fixes up every memberMeta and resolvedOffsets entry
// that pointed at oldOffset, after PurgeDeleted relocates that survivor to
// newOffset. It re-derives the moved object's (type, id) from its new slot
// and binary-searches for that id to find the metas to fix, the same way
// libosmium's own moving_in_buffer looks the relocated object back up rather
// than carrying a reverse index from offset to meta.
func (c *Collector) movingInMemberBuffer(oldOffset, newOffset int) {
	e := c.members.Get(newOffset)
	if e == nil {
		return
	}

	t, ok := entityType(e)
	if !ok {
		return
	}

	metas := c.membersMeta[t]
	id := e.GetID()

	lo := sort.Search(len(metas), func(i int) bool { return metas[i].id >= id })

	moved := false

	for i := lo; i < len(metas) && metas[i].id == id; i++ {
		if metas[i].bufferOffset != oldOffset {
			continue
		}

		metas[i].bufferOffset = newOffset
		moved = true

		if offsets := c.resolvedOffsets[metas[i].relationIdx]; offsets != nil {
			offsets[metas[i].memberPos] = newOffset
		}
	}

	if moved {
		if refs, ok := c.memberRefs[oldOffset]; ok {
			delete(c.memberRefs, oldOffset)
			c.memberRefs[newOffset] = refs
		}
	}
}

// entityType reports the EntityType a concrete model.Entity value decodes
// to. The collector needs this to know which membersMeta slice to
// binary-search after a member buffer compaction hands it back only the
// relocated entity, not the type it was tracked under.
func entityType(e model.Entity) (model.EntityType, bool) {
	switch e.(type) {
	case *model.Node:
		return model.NODE, true
	case *model.Way:
		return model.WAY, true
	case *model.Relation:
		return model.RELATION, true
	default:
		return 0, false
	}
}

// Pass1 reads every relation out of the source reader opens and decides
// which to track. Call this before Pass2.
func (c *Collector) Pass1(ctx context.Context, open ReaderFactory) error {
	rdr, err := open(ctx)
	if err != nil {
		return err
	}
	defer rdr.Close()

	for {
		e, err := rdr.Decode(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		if r, ok := e.(*model.Relation); ok {
			c.AddRelation(r)
		}
	}

	c.sortMemberMeta()

	return nil
}

// Pass2 reads every entity out of the source reader opens a second time,
// resolving tracked relation members and reporting everything else to Sink.
// Call Done once every reader pair has finished its Pass1/Pass2 run.
func (c *Collector) Pass2(ctx context.Context, open ReaderFactory) error {
	rdr, err := open(ctx)
	if err != nil {
		return err
	}
	defer rdr.Close()

	for {
		e, err := rdr.Decode(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		switch v := e.(type) {
		case *model.Node:
			if !c.findAndAddObject(model.NODE, v) {
				c.sink.NodeNotInAnyRelation(v)
			}
		case *model.Way:
			if !c.findAndAddObject(model.WAY, v) {
				c.sink.WayNotInAnyRelation(v)
			}
		case *model.Relation:
			if !c.findAndAddObject(model.RELATION, v) {
				c.sink.RelationNotInAnyRelation(v)
			}
		}
	}

	return nil
}

// Done signals that every Pass1/Pass2 run is finished and releases the
// collector's tracking state. Relations that never completed (dangling
// members that were never found) are simply dropped, matching libosmium's
// own behavior of never calling complete_relation for them.
func (c *Collector) Done() {
	c.membersMeta = [4][]memberMeta{}
	c.relationMetas = make(map[int]*relationMeta)
	c.resolvedOffsets = make(map[int][]int)
	c.deletedRel = make(map[int]bool)
	c.sink.Done()
}
