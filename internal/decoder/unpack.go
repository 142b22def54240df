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

// Package decoder turns a decompressed blob's raw bytes into model entities:
// Unpack handles the per-blob compression (raw/zlib/lz4/zstd, with lzma
// recognized only to be rejected), and ParsePrimitiveBlock/ParseHeaderBlock turn the
// resulting bytes into a PrimitiveBlock or HeaderBlock.
package decoder

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz/lzma"

	"osmstream.dev/pbf/internal/core"
	"osmstream.dev/pbf/internal/pb"
)

// ErrLzmaUnsupported is returned when a Blob's payload is lzma-compressed.
// libosmium itself never finished this path either; it is detected so the
// caller gets a precise error instead of garbage from misinterpreting the
// bytes as something else.
var ErrLzmaUnsupported = fmt.Errorf("decoder: lzma-compressed blobs are not supported")

// Unpack decompresses blob's payload into buf and returns the resulting raw
// bytes, which are only valid until buf is reused or closed.
func Unpack(buf *core.PooledBuffer, blob *pb.Blob) ([]byte, error) {
	switch blob.Compression {
	case pb.BlobRaw:
		return blob.Data, nil
	case pb.BlobZlib:
		return inflate(buf, blob, func(r io.Reader) (io.Reader, error) {
			return zlib.NewReader(r)
		})
	case pb.BlobLz4:
		return inflate(buf, blob, func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		})
	case pb.BlobZstd:
		return inflate(buf, blob, func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		})
	case pb.BlobLzma:
		// Probe enough of the header to produce a clean error without
		// attempting to inflate the rest; a real implementation of this
		// path would replace the probe with a full xz/lzma.NewReader call.
		if _, err := lzma.NewReader(bytes.NewReader(blob.Data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLzmaUnsupported, err)
		}

		return nil, ErrLzmaUnsupported
	default:
		return nil, fmt.Errorf("decoder: unsupported blob compression %d", blob.Compression)
	}
}

func inflate(buf *core.PooledBuffer, blob *pb.Blob, factory func(io.Reader) (io.Reader, error)) ([]byte, error) {
	rawBufferSize := int(blob.RawSize) + bytes.MinRead
	if rawBufferSize > buf.Cap() {
		buf.Grow(rawBufferSize)
	}

	r, err := factory(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("decoder: opening decompressor: %w", err)
	}

	n, err := buf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("decoder: decompressing blob: %w", err)
	}

	if n != int64(blob.RawSize) {
		return nil, fmt.Errorf("decoder: raw blob data size %d but expected %d", n, blob.RawSize)
	}

	return buf.Bytes(), nil
}
