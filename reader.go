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

// Package pbf streams nodes, ways, and relations out of an OpenStreetMap PBF
// file or URL without holding the whole file in memory: it reads and
// decompresses framed blobs off the source, farms block parsing out to a
// worker pool, and hands entities back to the caller in the order they
// appeared in the file.
package pbf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"osmstream.dev/pbf/internal/arena"
	"osmstream.dev/pbf/internal/core"
	"osmstream.dev/pbf/internal/decoder"
	"osmstream.dev/pbf/internal/decompress"
	"osmstream.dev/pbf/internal/frame"
	"osmstream.dev/pbf/internal/pool"
	"osmstream.dev/pbf/internal/queue"
	"osmstream.dev/pbf/internal/source"
	"osmstream.dev/pbf/model"
)

// pollInterval is how often the dispatch loop rechecks its back-pressure
// thresholds. libosmium's own work-queue loop polls every 10ms too; there is
// no event to wait on here since the thresholds are drained from the
// consumer side, not signaled to the producer side.
const pollInterval = 10 * time.Millisecond

// Reader decodes entities out of a PBF source in file order.
type Reader struct {
	src    *source.Source
	stream io.Reader
	header model.Header
	mask   model.EntityMask

	pool    *pool.Pool[[]model.Entity]
	futures *queue.Queue[*pool.Future[[]model.Entity]]
	sem     chan struct{}

	dispatchErr  core.ErrorCell
	dispatchDone chan struct{}
	readDone     chan struct{}

	cancel context.CancelFunc

	current *arena.Buffer
	cursor  int

	closeOnce sync.Once
	closeErr  error
}

// NewReader opens location (a local path or an http/https/ftp/file URL) and
// synchronously decodes its header block before returning. Background
// decoding of the data blocks starts only once the header is in hand.
func NewReader(ctx context.Context, location string, opts ...ReaderOption) (*Reader, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := source.Open(ctx, location)
	if err != nil {
		return nil, wrapErr(ErrSystemCall, "open", err)
	}

	decompressed, err := decompress.New(transportKind(location), src)
	if err != nil {
		_ = src.Close()

		return nil, wrapErr(ErrDecompression, "open", err)
	}

	dctx, cancel := context.WithCancel(ctx)

	chunks := queue.New[[]byte]()
	readDone := make(chan struct{})

	go source.ReadLoop(dctx, decompressed, chunks, readDone)

	stream := core.NewQueueReader(chunks)

	header, err := readHeaderBlock(stream)
	if err != nil {
		cancel()
		<-readDone
		_ = src.Close()

		return nil, err
	}

	r := &Reader{
		src:          src,
		stream:       stream,
		header:       header,
		mask:         cfg.mask,
		pool:         pool.New[[]model.Entity](cfg.workers),
		futures:      queue.New[*pool.Future[[]model.Entity]](),
		sem:          make(chan struct{}, cfg.highWaterMark),
		dispatchDone: make(chan struct{}),
		readDone:     readDone,
		cancel:       cancel,
	}

	// A caller that masked out every entity type has nothing for the
	// background reader to produce: starting it anyway would mean decoding
	// and discarding every data block in the file for no reason. Skip it and
	// leave the Reader in a state where NextBatch sees an already-exhausted
	// queue, matching spec.md §4.8's "if entity_mask != empty" gate. The read
	// thread already did its one required job — feeding the header block —
	// so it is stopped here too rather than left running unconsumed.
	if cfg.mask == model.MaskNone {
		cancel()
		<-readDone
		close(r.dispatchDone)
		r.futures.Close()
	} else {
		go r.dispatch(dctx, cfg.completedQueueSize)
	}

	return r, nil
}

// transportKind reports which transport-level decompressor, if any, wraps
// location's byte stream before PBF framing begins: a plain ".osm.pbf" file
// needs none, but a ".osm.pbf.gz" export or a replication diff served
// bzip2-compressed needs unwrapping first. This is independent of, and runs
// before, the per-blob zlib/lzma compression internal/decoder handles.
func transportKind(location string) decompress.Kind {
	path := location
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		return decompress.Gzip
	case strings.HasSuffix(path, ".bz2"):
		return decompress.Bzip2
	default:
		return decompress.None
	}
}

func readHeaderBlock(r io.Reader) (model.Header, error) {
	fr, err := frame.Read(r)
	if err != nil {
		return model.Header{}, wrapErr(ErrProtocolViolation, "read header frame", err)
	}

	if fr.Type != "OSMHeader" {
		return model.Header{}, wrapErr(ErrProtocolViolation, "read header frame",
			fmt.Errorf("expected OSMHeader blob, got %q", fr.Type))
	}

	buf := core.NewPooledBuffer()
	defer buf.Close()

	raw, err := decoder.Unpack(buf, fr.Blob)
	if err != nil {
		return model.Header{}, classifyDecodeErr("unpack header blob", err)
	}

	header, err := decoder.ParseHeaderBlock(raw)
	if err != nil {
		if len(header.UnsupportedFeatures()) > 0 {
			return header, wrapErr(ErrUnsupportedFeature, "parse header block", err)
		}

		return header, wrapErr(ErrParseFailed, "parse header block", err)
	}

	return header, nil
}

// Header returns the file's header block, decoded at construction time.
func (r *Reader) Header() model.Header {
	return r.header
}

// dispatch is the block-dispatch thread: it reads frames off r.stream — the
// queue-backed reader fed by the independent read thread started in
// NewReader, never the fd directly — submits a parse job per data block to
// the pool, and pushes the resulting Future onto the ordered completion
// queue in submission order, which is what makes NextBatch's output
// order-preserving even though the pool itself resolves jobs out of order.
// sem bounds how many jobs are outstanding at once; the queue length bounds
// how many completed-or-not Futures may sit waiting for a slow consumer.
func (r *Reader) dispatch(ctx context.Context, completedQueueSize int) {
	defer close(r.dispatchDone)
	defer r.futures.Close()

	blockIndex := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for r.futures.Len() >= completedQueueSize {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
		}

		fr, err := frame.Read(r.stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.dispatchErr.Set(wrapErr(ErrProtocolViolation, "read data frame", err))
			}

			return
		}

		if fr.Type != "OSMData" {
			r.dispatchErr.Set(wrapErr(ErrProtocolViolation, "read data frame",
				fmt.Errorf("unexpected blob type %q", fr.Type)))

			return
		}

		blockIndex++
		idx, blob, mask := blockIndex, fr.Blob, r.mask

		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		fut := r.pool.Submit(func() ([]model.Entity, error) {
			defer func() { <-r.sem }()

			buf := core.NewPooledBuffer()
			defer buf.Close()

			raw, err := decoder.Unpack(buf, blob)
			if err != nil {
				return nil, classifyDecodeErrIndexed("unpack data blob", idx, err)
			}

			entities, err := decoder.ParsePrimitiveBlock(raw, mask)
			if err != nil {
				return nil, &Error{Kind: ErrParseFailed, Op: "parse primitive block", BlockIndex: idx, Err: err}
			}

			return entities, nil
		})

		r.futures.Push(fut)
	}
}

// NextBatch blocks until the next data block in file order has finished
// decoding and returns its entities as an arena.Buffer. It returns io.EOF
// once the source is exhausted.
func (r *Reader) NextBatch(ctx context.Context) (*arena.Buffer, error) {
	fut, ok := r.futures.Pop()
	if !ok {
		if err := r.dispatchErr.Take(); err != nil {
			return nil, err
		}

		return nil, io.EOF
	}

	entities, err := fut.Get(ctx)
	if err != nil {
		return nil, err
	}

	buf := arena.New()
	for _, e := range entities {
		buf.Append(e)
	}

	return buf, nil
}

// Decode returns the next entity in file order, transparently advancing
// through batches. It returns io.EOF once every entity has been returned.
func (r *Reader) Decode(ctx context.Context) (model.Entity, error) {
	for {
		if r.current != nil && r.cursor < r.current.Len() {
			e := r.current.Get(r.cursor)
			r.cursor++

			if e == nil {
				continue
			}

			return e, nil
		}

		buf, err := r.NextBatch(ctx)
		if err != nil {
			return nil, err
		}

		r.current = buf
		r.cursor = 0
	}
}

// Close stops background decoding and releases the source. It is safe to
// call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.readDone
		<-r.dispatchDone

		for {
			if _, ok := r.futures.Pop(); !ok {
				break
			}
		}

		r.pool.Close()

		if err := r.src.Close(); err != nil {
			slog.Error("closing pbf source", "error", err)
			r.closeErr = wrapErr(ErrSubprocessFailed, "close", err)
		}
	})

	return r.closeErr
}

func classifyDecodeErr(op string, err error) error {
	if errors.Is(err, decoder.ErrLzmaUnsupported) {
		return wrapErr(ErrUnsupportedFeature, op, err)
	}

	return wrapErr(ErrDecompression, op, err)
}

func classifyDecodeErrIndexed(op string, idx int, err error) error {
	kind := ErrDecompression
	if errors.Is(err, decoder.ErrLzmaUnsupported) {
		kind = ErrUnsupportedFeature
	}

	return &Error{Kind: kind, Op: op, BlockIndex: idx, Err: err}
}
