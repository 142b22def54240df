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

package source

import (
	"context"
	"io"

	"osmstream.dev/pbf/internal/queue"
)

// ReadChunkSize is the size of the buffers ReadLoop pulls off the
// decompressed stream before handing them to the queue.
const ReadChunkSize = 256 * 1024

// ReadLoop runs on its own goroutine and does nothing but move bytes: pull a
// fixed ReadChunkSize buffer from r, push a copy onto q, repeat until r
// reports an error (io.EOF on a clean end of stream) or ctx is done. This is
// the dedicated read thread spec.md §4.3 describes — the only goroutine that
// ever blocks on the decompressor's underlying file descriptor — so that the
// block-dispatch thread on the other end of q blocks on the bounded queue
// instead of the fd directly. ctx.Done() is the "done" flag that lets the
// facade interrupt the loop early; checked once per iteration, so the loop
// exits at the next loop boundary rather than mid-read. Either way it closes
// q exactly once on exit, which is q's sentinel for "no more chunks are
// coming," and closes done so a caller waiting to join this goroutine can.
func ReadLoop(ctx context.Context, r io.Reader, q *queue.Queue[[]byte], done chan struct{}) {
	defer close(done)
	defer q.Close()

	buf := make([]byte, ReadChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			q.Push(chunk)
		}

		if err != nil {
			return
		}
	}
}
