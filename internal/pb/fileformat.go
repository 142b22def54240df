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

package pb

import "google.golang.org/protobuf/encoding/protowire"

// BlobHeader is fileformat.proto's BlobHeader message.
type BlobHeader struct {
	Type      string
	IndexData []byte
	DataSize  int32
}

// UnmarshalBlobHeader decodes a BlobHeader from its protobuf encoding.
func UnmarshalBlobHeader(b []byte) (*BlobHeader, error) {
	h := &BlobHeader{}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // type
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			h.Type = string(v)

			return n, nil
		case 2: // indexdata
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			h.IndexData = v

			return n, nil
		case 3: // datasize
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			h.DataSize = int32(v)

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return h, nil
}

// BlobCompression identifies how a Blob's payload is compressed.
type BlobCompression int

const (
	// BlobRaw means the payload is stored uncompressed.
	BlobRaw BlobCompression = iota
	BlobZlib
	BlobLzma
	BlobBzip2 // obsolete per fileformat.proto, never produced by modern writers
	BlobLz4
	BlobZstd
	// BlobUnknown is returned when none of the oneof fields is set.
	BlobUnknown
)

// Blob is fileformat.proto's Blob message. Exactly one of the data fields is
// populated; Compression reports which.
type Blob struct {
	Compression BlobCompression
	Data        []byte // the (still compressed, unless Compression==BlobRaw) payload
	RawSize     int32  // raw_size as read off the wire; 0 when the field is absent
}

// UnmarshalBlob decodes a Blob from its protobuf encoding.
func UnmarshalBlob(b []byte) (*Blob, error) {
	blob := &Blob{Compression: BlobUnknown}

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // raw
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobRaw
			blob.Data = v

			return n, nil
		case 2: // raw_size
			v, n, err := consumeVarint(b)
			if err != nil {
				return 0, err
			}

			blob.RawSize = int32(v)

			return n, nil
		case 3: // zlib_data
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobZlib
			blob.Data = v

			return n, nil
		case 4: // lzma_data
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobLzma
			blob.Data = v

			return n, nil
		case 5: // OBSOLETE_bzip2_data
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobBzip2
			blob.Data = v

			return n, nil
		case 6: // lz4_data
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobLz4
			blob.Data = v

			return n, nil
		case 7: // zstd_data
			v, n, err := consumeBytes(b)
			if err != nil {
				return 0, err
			}

			blob.Compression = BlobZstd
			blob.Data = v

			return n, nil
		default:
			return skipField(typ, b)
		}
	})
	if err != nil {
		return nil, err
	}

	return blob, nil
}
