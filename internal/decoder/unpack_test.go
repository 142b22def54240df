package decoder

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"

	"osmstream.dev/pbf/internal/core"
	"osmstream.dev/pbf/internal/pb"
)

func TestUnpackRawPassesThrough(t *testing.T) {
	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{Compression: pb.BlobRaw, Data: []byte("raw bytes")}

	got, err := Unpack(buf, blob)
	assert.NoError(t, err)
	assert.Equal(t, "raw bytes", string(got))
}

func TestUnpackZlibInflatesToExpectedSize(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer

	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(want)
	assert.NoError(t, err)
	assert.NoError(t, zw.Close())

	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{
		Compression: pb.BlobZlib,
		Data:        compressed.Bytes(),
		RawSize:     int32(len(want)),
	}

	got, err := Unpack(buf, blob)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnpackZlibRawSizeMismatchFails(t *testing.T) {
	var compressed bytes.Buffer

	zw := zlib.NewWriter(&compressed)
	_, _ = zw.Write([]byte("some data"))
	_ = zw.Close()

	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{
		Compression: pb.BlobZlib,
		Data:        compressed.Bytes(),
		RawSize:     999,
	}

	_, err := Unpack(buf, blob)
	assert.Error(t, err)
}

func TestUnpackZlibCorruptDataFails(t *testing.T) {
	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{Compression: pb.BlobZlib, Data: []byte("not zlib"), RawSize: 10}

	_, err := Unpack(buf, blob)
	assert.Error(t, err)
}

func TestUnpackLz4InflatesToExpectedSize(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog, repeated for a compressible run")

	var compressed bytes.Buffer

	lw := lz4.NewWriter(&compressed)
	_, err := lw.Write(want)
	assert.NoError(t, err)
	assert.NoError(t, lw.Close())

	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{
		Compression: pb.BlobLz4,
		Data:        compressed.Bytes(),
		RawSize:     int32(len(want)),
	}

	got, err := Unpack(buf, blob)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnpackZstdInflatesToExpectedSize(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer

	zw, err := zstd.NewWriter(&compressed)
	assert.NoError(t, err)

	_, err = zw.Write(want)
	assert.NoError(t, err)
	assert.NoError(t, zw.Close())

	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{
		Compression: pb.BlobZstd,
		Data:        compressed.Bytes(),
		RawSize:     int32(len(want)),
	}

	got, err := Unpack(buf, blob)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnpackLzmaIsUnsupported(t *testing.T) {
	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{Compression: pb.BlobLzma, Data: []byte("not a real lzma stream"), RawSize: 10}

	_, err := Unpack(buf, blob)
	assert.ErrorIs(t, err, ErrLzmaUnsupported)
}

func TestUnpackUnknownCompressionFails(t *testing.T) {
	buf := core.NewPooledBuffer()
	defer buf.Close()

	blob := &pb.Blob{Compression: pb.BlobBzip2, Data: []byte("x")}

	_, err := Unpack(buf, blob)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLzmaUnsupported))
}
