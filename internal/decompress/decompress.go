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

// Package decompress wraps the transport-level decompressors a source file
// may be wrapped in (as opposed to the per-blob zlib/lzma compression inside
// the PBF framing, which internal/decoder handles). It exists for sources
// like a .osm.pbf.gz export or a bzip2-wrapped XML fallback fed through the
// same subprocess pipe.
package decompress

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// Kind selects which transport decompressor to wrap a reader with.
type Kind int

const (
	None Kind = iota
	Gzip
	Bzip2
)

// New wraps r with the decompressor for kind. Construction never fails for
// Gzip or Bzip2 even on malformed input: gzip.NewReader defers header
// validation and bzip2.NewReader never validates eagerly, so any error
// surfaces from the first Read instead, which is also when an empty input
// correctly yields io.EOF rather than a construction error.
func New(kind Kind, r io.Reader) (io.Reader, error) {
	switch kind {
	case None:
		return r, nil
	case Gzip:
		return &lazyGzip{src: r}, nil
	case Bzip2:
		return bzip2.NewReader(r), nil
	default:
		return nil, fmt.Errorf("decompress: unknown kind %d", kind)
	}
}

// NewFromFD wraps the decompressor for kind around the open file descriptor
// fd, validating fd before any decompressor is constructed. Nothing else in
// this module calls it; it is the entry point for a caller that already
// holds a raw descriptor, and the one exercised by the invalid-descriptor
// edge case: a negative or unopened fd fails here, before any decompressor
// allocates internal buffers.
func NewFromFD(kind Kind, fd int) (io.ReadCloser, error) {
	if fd < 0 {
		return nil, fmt.Errorf("decompress: invalid file descriptor %d", fd)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("fd %d", fd))
	if f == nil {
		return nil, fmt.Errorf("decompress: invalid file descriptor %d", fd)
	}

	if _, err := f.Stat(); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("decompress: file descriptor %d: %w", fd, err)
	}

	r, err := New(kind, f)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return &readCloser{Reader: r, closer: f}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc *readCloser) Close() error { return rc.closer.Close() }

// lazyGzip defers gzip.NewReader until the first Read, so that a
// zero-length stream yields io.EOF instead of construction failing on an
// input that has not arrived yet.
type lazyGzip struct {
	src io.Reader
	gz  io.Reader
	err error
}

func (l *lazyGzip) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}

	if l.gz == nil {
		gz, err := gzip.NewReader(l.src)
		if err != nil {
			l.err = err

			return 0, err
		}

		l.gz = gz
	}

	n, err := l.gz.Read(p)
	if err != nil {
		l.err = err
	}

	return n, err
}
