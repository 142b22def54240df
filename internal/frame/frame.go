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

// Package frame reads the length-prefixed BlobHeader+Blob pairs that make up
// an OSM PBF byte stream: a big-endian uint32 header length, the BlobHeader
// itself, and then a Blob of the size the header declared.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"osmstream.dev/pbf/internal/core"
	"osmstream.dev/pbf/internal/pb"
)

const (
	// MaxBlobHeaderSize bounds the length prefix read off the wire, so a
	// corrupt or hostile stream cannot make the reader allocate an
	// unbounded buffer before it has even seen a real header.
	MaxBlobHeaderSize = 64 * 1024

	// MaxUncompressedBlobSize bounds a Blob's declared size, both its wire
	// size and its claimed decompressed size.
	MaxUncompressedBlobSize = 32 * 1024 * 1024
)

// Frame is one decoded BlobHeader+Blob pair, still compressed per the
// header's declared type ("OSMHeader" or "OSMData").
type Frame struct {
	Type string
	Blob *pb.Blob
}

// Read decodes exactly one Frame from r. It returns io.EOF, unwrapped, when
// r is exhausted before a new frame begins; any other error is wrapped with
// enough context to identify which part of the frame failed.
func Read(r io.Reader) (*Frame, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if header.DataSize <= 0 || int(header.DataSize) > MaxUncompressedBlobSize {
		return nil, fmt.Errorf("frame: blob size %d out of range", header.DataSize)
	}

	buf := core.NewPooledBuffer()
	defer buf.Close()

	if _, err := io.CopyN(buf, r, int64(header.DataSize)); err != nil {
		return nil, fmt.Errorf("frame: reading blob body: %w", err)
	}

	blob, err := pb.UnmarshalBlob(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("frame: decoding blob: %w", err)
	}

	if blob.Compression == pb.BlobUnknown {
		return nil, fmt.Errorf("frame: blob has no data field set")
	}

	if blob.RawSize > MaxUncompressedBlobSize {
		return nil, fmt.Errorf("frame: declared raw size %d exceeds limit", blob.RawSize)
	}

	// blob.Data points into buf, which goes back to the pool when Read
	// returns; copy it so the next frame read cannot overwrite it.
	blob.Data = append([]byte(nil), blob.Data...)

	return &Frame{Type: header.Type, Blob: blob}, nil
}

func readHeader(r io.Reader) (*pb.BlobHeader, error) {
	var size uint32

	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("frame: reading blob header length: %w", err)
	}

	if size == 0 || int(size) > MaxBlobHeaderSize {
		return nil, fmt.Errorf("frame: header length %d out of range", size)
	}

	buf := core.NewPooledBuffer()
	defer buf.Close()

	if _, err := io.CopyN(buf, r, int64(size)); err != nil {
		return nil, fmt.Errorf("frame: reading blob header: %w", err)
	}

	header, err := pb.UnmarshalBlobHeader(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("frame: decoding blob header: %w", err)
	}

	return header, nil
}
