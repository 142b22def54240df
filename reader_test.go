package pbf

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/encoding/protowire"

	"osmstream.dev/pbf/model"
)

func appendTagVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

func appendTagZigZag(b []byte, num protowire.Number, v int64) []byte {
	return appendTagVarint(b, num, protowire.EncodeZigZag(v))
}

func appendTagBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v)
}

func appendTagString(b []byte, num protowire.Number, v string) []byte {
	return appendTagBytes(b, num, []byte(v))
}

func appendTagPackedVarints(b []byte, num protowire.Number, vals []uint64) []byte {
	var packed []byte

	for _, v := range vals {
		packed = protowire.AppendVarint(packed, v)
	}

	return appendTagBytes(b, num, packed)
}

// buildBlob frames raw (an already-serialized HeaderBlock or PrimitiveBlock)
// as an uncompressed Blob: field 1 is the raw bytes, field 2 their size.
func buildBlob(raw []byte) []byte {
	var b []byte
	b = appendTagBytes(b, 1, raw)
	b = appendTagVarint(b, 2, uint64(len(raw)))

	return b
}

// buildFrame writes one length-prefixed BlobHeader+Blob pair in the format
// internal/frame.Read expects.
func buildFrame(blobType string, blob []byte) []byte {
	var bh []byte
	bh = appendTagString(bh, 1, blobType)
	bh = appendTagVarint(bh, 3, uint64(len(blob)))

	var out []byte
	out = append(out, 0, 0, 0, 0)
	be := uint32(len(bh))
	out[0] = byte(be >> 24)
	out[1] = byte(be >> 16)
	out[2] = byte(be >> 8)
	out[3] = byte(be)

	out = append(out, bh...)
	out = append(out, blob...)

	return out
}

func buildHeaderBlockBytes() []byte {
	var b []byte
	b = appendTagString(b, 4, "OsmSchema-V0.6")
	b = appendTagString(b, 4, "DenseNodes")
	b = appendTagString(b, 16, "osmstream-test")

	return b
}

func buildPrimitiveBlockBytes(nodeID model.ID) []byte {
	var st []byte
	st = appendTagString(st, 1, "")
	st = appendTagString(st, 1, "highway")
	st = appendTagString(st, 1, "residential")

	var node []byte
	node = appendTagZigZag(node, 1, int64(nodeID))
	node = appendTagPackedVarints(node, 2, []uint64{1})
	node = appendTagPackedVarints(node, 3, []uint64{2})
	node = appendTagZigZag(node, 8, 515000000)
	node = appendTagZigZag(node, 9, -4000000)

	var group []byte
	group = appendTagBytes(group, 1, node)

	var blk []byte
	blk = appendTagBytes(blk, 1, st)
	blk = appendTagBytes(blk, 2, group)
	blk = appendTagVarint(blk, 17, 100)
	blk = appendTagVarint(blk, 19, 0)
	blk = appendTagVarint(blk, 20, 0)

	return blk
}

// writeFixturePBF assembles a minimal valid PBF file: one OSMHeader frame
// followed by one OSMData frame containing a single node per block.
func writeFixturePBF(t *testing.T, path string, nodeIDs ...model.ID) {
	t.Helper()

	var out []byte
	out = append(out, buildFrame("OSMHeader", buildBlob(buildHeaderBlockBytes()))...)

	for _, id := range nodeIDs {
		out = append(out, buildFrame("OSMData", buildBlob(buildPrimitiveBlockBytes(id)))...)
	}

	assert.NoError(t, os.WriteFile(path, out, 0o644))
}

func TestReaderDecodesHeaderAndEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")
	writeFixturePBF(t, path, 1, 2, 3)

	ctx := context.Background()

	r, err := NewReader(ctx, path)
	assert.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Header().PBFDenseNodes)
	assert.Equal(t, "osmstream-test", r.Header().WritingProgram)

	var ids []model.ID

	for {
		e, err := r.Decode(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		assert.NoError(t, err)

		nd, ok := e.(*model.Node)
		assert.True(t, ok)
		ids = append(ids, nd.ID)
	}

	assert.Equal(t, []model.ID{1, 2, 3}, ids)
}

func TestReaderHonorsEntityMask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")
	writeFixturePBF(t, path, 1)

	ctx := context.Background()

	r, err := NewReader(ctx, path, WithEntityMask(model.MaskWay))
	assert.NoError(t, err)
	defer r.Close()

	_, err = r.Decode(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderWithMaskNoneNeverStartsBackgroundDecoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")
	writeFixturePBF(t, path, 1, 2, 3)

	ctx := context.Background()

	r, err := NewReader(ctx, path, WithEntityMask(model.MaskNone))
	assert.NoError(t, err)
	defer r.Close()

	_, err = r.Decode(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, r.Close())
}

func TestReaderRejectsMissingFile(t *testing.T) {
	_, err := NewReader(context.Background(), filepath.Join(t.TempDir(), "nope.osm.pbf"))
	assert.Error(t, err)

	var pbfErr *Error
	assert.ErrorAs(t, err, &pbfErr)
	assert.Equal(t, ErrSystemCall, pbfErr.Kind)
}

func TestReaderRejectsUnexpectedFirstBlobType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")

	out := buildFrame("OSMData", buildBlob(buildPrimitiveBlockBytes(1)))
	assert.NoError(t, os.WriteFile(path, out, 0o644))

	_, err := NewReader(context.Background(), path)
	assert.Error(t, err)

	var pbfErr *Error
	assert.ErrorAs(t, err, &pbfErr)
	assert.Equal(t, ErrProtocolViolation, pbfErr.Kind)
}

func TestReaderCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")
	writeFixturePBF(t, path, 1)

	r, err := NewReader(context.Background(), path)
	assert.NoError(t, err)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestReaderMultipleDataBlocksPreserveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.osm.pbf")
	writeFixturePBF(t, path, 5, 4, 3, 2, 1)

	ctx := context.Background()

	r, err := NewReader(ctx, path, WithWorkers(3))
	assert.NoError(t, err)
	defer r.Close()

	var ids []model.ID

	for {
		e, err := r.Decode(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		assert.NoError(t, err)
		ids = append(ids, e.GetID())
	}

	assert.Equal(t, []model.ID{5, 4, 3, 2, 1}, ids)
}
