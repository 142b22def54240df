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

// Package core holds small pieces of plumbing shared across the decode
// pipeline that do not belong to any one stage: a pooled byte buffer, a
// reader that drains a queue of byte chunks, and a one-shot error cell.
package core

import (
	"bytes"
	"io"
	"sync"

	"osmstream.dev/pbf/internal/queue"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// PooledBuffer is a bytes.Buffer borrowed from a sync.Pool. Call Close to
// return it to the pool once it is no longer needed; the embedded buffer is
// reset before reuse, so capacity is retained but content is not.
type PooledBuffer struct {
	*bytes.Buffer
}

// NewPooledBuffer borrows a buffer from the pool.
func NewPooledBuffer() *PooledBuffer {
	buf, _ := bufferPool.Get().(*bytes.Buffer)

	return &PooledBuffer{Buffer: buf}
}

// Close returns the buffer to the pool. The PooledBuffer must not be used
// afterward.
func (b *PooledBuffer) Close() error {
	if b.Buffer == nil {
		return nil
	}

	b.Buffer.Reset()
	bufferPool.Put(b.Buffer)
	b.Buffer = nil

	return nil
}

// QueueReader adapts a *queue.Queue[[]byte] into an io.Reader, satisfying
// reads out of whatever is left of the current chunk before pulling the
// next one off the queue. It is how the frame reader (C5) stays ignorant of
// the read thread on the other end of the queue: from its side this looks
// like any other io.Reader, and it returns io.EOF once the queue is closed
// and drained.
type QueueReader struct {
	q   *queue.Queue[[]byte]
	buf []byte
}

// NewQueueReader creates a QueueReader that pulls chunks from q.
func NewQueueReader(q *queue.Queue[[]byte]) *QueueReader {
	return &QueueReader{q: q}
}

func (r *QueueReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, ok := r.q.Pop()
		if !ok {
			return 0, io.EOF
		}

		r.buf = chunk
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]

	return n, nil
}
