package decompress

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNonePassesThrough(t *testing.T) {
	r, err := New(None, bytes.NewReader([]byte("hello")))
	assert.NoError(t, err)

	b, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Kind(99), bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("the quick brown fox"))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())

	r, err := New(Gzip, &buf)
	assert.NoError(t, err)

	got, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "the quick brown fox", string(got))
}

func TestGzipEmptyInputYieldsEOF(t *testing.T) {
	r, err := New(Gzip, bytes.NewReader(nil))
	assert.NoError(t, err)

	n, err := r.Read(make([]byte, 16))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGzipCorruptInput(t *testing.T) {
	r, err := New(Gzip, bytes.NewReader([]byte("not a gzip stream")))
	assert.NoError(t, err)

	_, err = io.ReadAll(r)
	assert.Error(t, err)
}

func TestBzip2EmptyInputYieldsEOF(t *testing.T) {
	r, err := New(Bzip2, bytes.NewReader(nil))
	assert.NoError(t, err)

	n, err := r.Read(make([]byte, 16))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBzip2CorruptInput(t *testing.T) {
	r, err := New(Bzip2, bytes.NewReader([]byte("not a bzip2 stream")))
	assert.NoError(t, err)

	_, err = io.ReadAll(r)
	assert.Error(t, err)
}

func TestNewFromFDInvalidDescriptor(t *testing.T) {
	_, err := NewFromFD(None, -1)
	assert.Error(t, err)
}

func TestNewFromFDUnopenedDescriptor(t *testing.T) {
	// A large, almost certainly unopened file descriptor number should fail
	// at the Stat check rather than succeeding silently.
	_, err := NewFromFD(None, 98765)
	assert.Error(t, err)
}
