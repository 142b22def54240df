package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueuePushPopOrder(t *testing.T) {
	q := New[int]()

	q.Push(1)
	q.Push(2)
	q.Push(3)

	assert.Equal(t, 3, q.Len())

	for _, want := range []int{1, 2, 3} {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := New[int]()

	var v int

	var ok bool

	done := make(chan struct{})

	go func() {
		v, ok = q.Pop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(42)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}

	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestQueueCloseDrainsThenFails(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Close()

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	q := New[int]()

	var wg sync.WaitGroup

	wg.Add(1)

	var ok bool

	go func() {
		defer wg.Done()

		_, ok = q.Pop()
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()

	assert.False(t, ok)
}

func TestQueuePushAfterCloseIsNoOp(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Push(1)

	assert.Equal(t, 0, q.Len())
}
