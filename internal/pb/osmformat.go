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

package pb

import "google.golang.org/protobuf/encoding/protowire"

// HeaderBBox is osmformat.proto's HeaderBBox, in nanodegrees.
type HeaderBBox struct {
	Left, Right, Top, Bottom int64
}

// HeaderBlock is osmformat.proto's HeaderBlock, the payload of the
// "OSMHeader" blob every PBF file starts with.
type HeaderBlock struct {
	Bbox                              *HeaderBBox
	RequiredFeatures                  []string
	OptionalFeatures                  []string
	WritingProgram                    string
	Source                            string
	OsmosisReplicationTimestamp       *int64
	OsmosisReplicationSequenceNumber  int64
	OsmosisReplicationBaseURL         string
}

// UnmarshalHeaderBlock decodes a HeaderBlock.
func UnmarshalHeaderBlock(b []byte) (*HeaderBlock, error) {
	hb := &HeaderBlock{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // bbox
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			bbox, err := unmarshalHeaderBBox(v)
			if err != nil {
				return 0, err
			}

			hb.Bbox = bbox

			return n, nil
		case 4: // required_features
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			hb.RequiredFeatures = append(hb.RequiredFeatures, string(v))

			return n, nil
		case 5: // optional_features
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			hb.OptionalFeatures = append(hb.OptionalFeatures, string(v))

			return n, nil
		case 16: // writingprogram
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			hb.WritingProgram = string(v)

			return n, nil
		case 17: // source
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			hb.Source = string(v)

			return n, nil
		case 32: // osmosis_replication_timestamp
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			ts := int64(v)
			hb.OsmosisReplicationTimestamp = &ts

			return n, nil
		case 33: // osmosis_replication_sequence_number
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			hb.OsmosisReplicationSequenceNumber = int64(v)

			return n, nil
		case 34: // osmosis_replication_base_url
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			hb.OsmosisReplicationBaseURL = string(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return hb, nil
}

func unmarshalHeaderBBox(b []byte) (*HeaderBBox, error) {
	bbox := &HeaderBBox{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			bbox.Left = zigzag64(v)

			return n, nil
		case 2:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			bbox.Right = zigzag64(v)

			return n, nil
		case 3:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			bbox.Top = zigzag64(v)

			return n, nil
		case 4:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			bbox.Bottom = zigzag64(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return bbox, nil
}

// StringTable is osmformat.proto's StringTable: the dictionary every index
// into keys/vals/roles within a PrimitiveBlock refers back to.
type StringTable struct {
	S []string
}

func unmarshalStringTable(b []byte) (*StringTable, error) {
	st := &StringTable{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			st.S = append(st.S, string(v))

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return st, nil
}

// Info is osmformat.proto's Info: per-object metadata attached to a single
// (non-dense) Node, a Way, or a Relation.
type Info struct {
	Version   int32
	Timestamp int64
	Changeset int64
	UID       int32
	UserSID   int32
	Visible   *bool
}

func unmarshalInfo(b []byte) (*Info, error) {
	info := &Info{Version: -1}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			info.Version = int32(v)

			return n, nil
		case 2:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			info.Timestamp = int64(v)

			return n, nil
		case 3:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			info.Changeset = int64(v)

			return n, nil
		case 4:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			info.UID = int32(v)

			return n, nil
		case 5:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			info.UserSID = int32(v)

			return n, nil
		case 6:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			visible := v != 0
			info.Visible = &visible

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}

// DenseInfo is osmformat.proto's DenseInfo: Info for an entire DenseNodes
// group, every column delta-encoded against the previous row.
type DenseInfo struct {
	Version    []int32
	Timestamp  []int64
	Changeset  []int64
	UID        []int32
	UserSID    []int32
	Visible    []bool
}

func unmarshalDenseInfo(b []byte) (*DenseInfo, error) {
	di := &DenseInfo{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.Version = append(di.Version, int32(x))
			}

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.Timestamp = append(di.Timestamp, zigzag64(x))
			}

			return n, nil
		case 3:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.Changeset = append(di.Changeset, zigzag64(x))
			}

			return n, nil
		case 4:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.UID = append(di.UID, zigzag32(x))
			}

			return n, nil
		case 5:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.UserSID = append(di.UserSID, zigzag32(x))
			}

			return n, nil
		case 6:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				di.Visible = append(di.Visible, x != 0)
			}

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return di, nil
}

// Node is osmformat.proto's Node: a single, non-dense-encoded node.
type Node struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Lat  int64
	Lon  int64
}

func unmarshalNode(b []byte) (*Node, error) {
	nd := &Node{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			nd.ID = zigzag64(v)

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				nd.Keys = append(nd.Keys, uint32(x))
			}

			return n, nil
		case 3:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				nd.Vals = append(nd.Vals, uint32(x))
			}

			return n, nil
		case 4:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			info, err := unmarshalInfo(v)
			if err != nil {
				return 0, err
			}

			nd.Info = info

			return n, nil
		case 8:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			nd.Lat = zigzag64(v)

			return n, nil
		case 9:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			nd.Lon = zigzag64(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return nd, nil
}

// DenseNodes is osmformat.proto's DenseNodes: every column delta-encoded
// against the previous row, keys/vals interleaved into a single array
// terminated by a zero per node.
type DenseNodes struct {
	ID        []int64
	DenseInfo *DenseInfo
	Lat       []int64
	Lon       []int64
	KeysVals  []int32
}

func unmarshalDenseNodes(b []byte) (*DenseNodes, error) {
	dn := &DenseNodes{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				dn.ID = append(dn.ID, zigzag64(x))
			}

			return n, nil
		case 5:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			di, err := unmarshalDenseInfo(v)
			if err != nil {
				return 0, err
			}

			dn.DenseInfo = di

			return n, nil
		case 8:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				dn.Lat = append(dn.Lat, zigzag64(x))
			}

			return n, nil
		case 9:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				dn.Lon = append(dn.Lon, zigzag64(x))
			}

			return n, nil
		case 10:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				dn.KeysVals = append(dn.KeysVals, int32(x))
			}

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return dn, nil
}

// Way is osmformat.proto's Way.
type Way struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Refs []int64
}

func unmarshalWay(b []byte) (*Way, error) {
	w := &Way{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			w.ID = int64(v)

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				w.Keys = append(w.Keys, uint32(x))
			}

			return n, nil
		case 3:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				w.Vals = append(w.Vals, uint32(x))
			}

			return n, nil
		case 4:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			info, err := unmarshalInfo(v)
			if err != nil {
				return 0, err
			}

			w.Info = info

			return n, nil
		case 8:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				w.Refs = append(w.Refs, zigzag64(x))
			}

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

// RelationMemberType mirrors Relation.MemberType.
type RelationMemberType int32

const (
	MemberNode RelationMemberType = iota
	MemberWay
	MemberRelation
)

// Relation is osmformat.proto's Relation.
type Relation struct {
	ID       int64
	Keys     []uint32
	Vals     []uint32
	Info     *Info
	RolesSID []int32
	MemIDs   []int64
	Types    []RelationMemberType
}

func unmarshalRelation(b []byte) (*Relation, error) {
	r := &Relation{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			r.ID = int64(v)

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				r.Keys = append(r.Keys, uint32(x))
			}

			return n, nil
		case 3:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				r.Vals = append(r.Vals, uint32(x))
			}

			return n, nil
		case 4:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			info, err := unmarshalInfo(v)
			if err != nil {
				return 0, err
			}

			r.Info = info

			return n, nil
		case 8:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				r.RolesSID = append(r.RolesSID, int32(x))
			}

			return n, nil
		case 9:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				r.MemIDs = append(r.MemIDs, zigzag64(x))
			}

			return n, nil
		case 10:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			raw, err := packedVarints(v)
			if err != nil {
				return 0, err
			}

			for _, x := range raw {
				r.Types = append(r.Types, RelationMemberType(x))
			}

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// ChangeSet is osmformat.proto's ChangeSet. No PrimitiveGroup in a real
// planet or extract file carries one, but the message is decoded for
// completeness should a producer ever emit it.
type ChangeSet struct {
	ID int64
}

func unmarshalChangeSet(b []byte) (*ChangeSet, error) {
	cs := &ChangeSet{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			cs.ID = zigzag64(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return cs, nil
}

// PrimitiveGroup is osmformat.proto's PrimitiveGroup: exactly one of its
// slots is populated per group in practice, but the message allows more.
type PrimitiveGroup struct {
	Nodes      []*Node
	Dense      *DenseNodes
	Ways       []*Way
	Relations  []*Relation
	ChangeSets []*ChangeSet
}

func unmarshalPrimitiveGroup(b []byte) (*PrimitiveGroup, error) {
	pg := &PrimitiveGroup{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			nd, err := unmarshalNode(v)
			if err != nil {
				return 0, err
			}

			pg.Nodes = append(pg.Nodes, nd)

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			dn, err := unmarshalDenseNodes(v)
			if err != nil {
				return 0, err
			}

			pg.Dense = dn

			return n, nil
		case 3:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			w, err := unmarshalWay(v)
			if err != nil {
				return 0, err
			}

			pg.Ways = append(pg.Ways, w)

			return n, nil
		case 4:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			r, err := unmarshalRelation(v)
			if err != nil {
				return 0, err
			}

			pg.Relations = append(pg.Relations, r)

			return n, nil
		case 5:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			cs, err := unmarshalChangeSet(v)
			if err != nil {
				return 0, err
			}

			pg.ChangeSets = append(pg.ChangeSets, cs)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return pg, nil
}

// PrimitiveBlock is osmformat.proto's PrimitiveBlock: a batch of entities
// sharing one string table and one set of coordinate/timestamp scaling
// parameters.
type PrimitiveBlock struct {
	StringTable     *StringTable
	PrimitiveGroup  []*PrimitiveGroup
	Granularity     int32
	LatOffset       int64
	LonOffset       int64
	DateGranularity int32
}

// UnmarshalPrimitiveBlock decodes a PrimitiveBlock.
func UnmarshalPrimitiveBlock(b []byte) (*PrimitiveBlock, error) {
	blk := &PrimitiveBlock{Granularity: 100, DateGranularity: 1000}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			st, err := unmarshalStringTable(v)
			if err != nil {
				return 0, err
			}

			blk.StringTable = st

			return n, nil
		case 2:
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			pg, err := unmarshalPrimitiveGroup(v)
			if err != nil {
				return 0, err
			}

			blk.PrimitiveGroup = append(blk.PrimitiveGroup, pg)

			return n, nil
		case 17:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			blk.Granularity = int32(v)

			return n, nil
		case 18:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			blk.DateGranularity = int32(v)

			return n, nil
		case 19:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			blk.LatOffset = int64(v)

			return n, nil
		case 20:
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			blk.LonOffset = int64(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	if blk.StringTable == nil {
		blk.StringTable = &StringTable{}
	}

	return blk, nil
}
