package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPooledBufferResetsOnClose(t *testing.T) {
	buf := NewPooledBuffer()
	buf.WriteString("hello")

	assert.Equal(t, "hello", buf.String())
	assert.NoError(t, buf.Close())

	again := NewPooledBuffer()
	assert.Equal(t, 0, again.Len())
	assert.NoError(t, again.Close())
}

func TestPooledBufferCloseIsSafeToCallOnce(t *testing.T) {
	buf := NewPooledBuffer()
	assert.NoError(t, buf.Close())
	assert.Nil(t, buf.Buffer)
	assert.NoError(t, buf.Close())
}

func TestErrorCellFirstWriteWins(t *testing.T) {
	var c ErrorCell

	assert.NoError(t, c.Err())

	first := errors.New("first")
	second := errors.New("second")

	c.Set(first)
	c.Set(second)

	assert.Equal(t, first, c.Err())
}

func TestErrorCellIgnoresNil(t *testing.T) {
	var c ErrorCell

	c.Set(nil)
	assert.NoError(t, c.Err())

	want := errors.New("boom")
	c.Set(want)
	assert.Equal(t, want, c.Err())
}

func TestErrorCellTakeReturnsErrorOnlyOnce(t *testing.T) {
	var c ErrorCell

	want := errors.New("boom")
	c.Set(want)

	assert.Equal(t, want, c.Take())
	assert.NoError(t, c.Take())
	assert.NoError(t, c.Take())
}

func TestErrorCellTakeOnEmptyCellReturnsNil(t *testing.T) {
	var c ErrorCell

	assert.NoError(t, c.Take())

	c.Set(errors.New("too late"))
	assert.NoError(t, c.Take())
}

func TestErrorCellErrDoesNotConsume(t *testing.T) {
	var c ErrorCell

	want := errors.New("boom")
	c.Set(want)

	assert.Equal(t, want, c.Err())
	assert.Equal(t, want, c.Err())
	assert.Equal(t, want, c.Take())
}
