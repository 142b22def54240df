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

// Package pb decodes the handful of protobuf messages that make up the OSM
// PBF wire format (fileformat.proto's BlobHeader/Blob, osmformat.proto's
// HeaderBlock/PrimitiveBlock and friends) directly off the wire using
// protowire, without a generated .pb.go. There is no corresponding encoder:
// this module only ever reads.
package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc consumes the value of one field, given the bytes starting
// immediately after that field's tag. It returns the number of bytes the
// value occupied.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// forEachField walks every tag/value pair in b, invoking fn for each. Fields
// fn does not recognize must still be consumed by calling
// protowire.ConsumeFieldValue and returning its result; forEachField does
// not skip unknown fields on fn's behalf because fn is what knows the wire
// type in order to do so correctly when typ is ambiguous to the caller.
func forEachField(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return fmt.Errorf("pb: invalid tag: %w", protowire.ParseError(tagLen))
		}

		b = b[tagLen:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}

		if n < 0 || n > len(b) {
			return fmt.Errorf("pb: field %d consumed %d of %d remaining bytes", num, n, len(b))
		}

		b = b[n:]
	}

	return nil
}

// skipField consumes and discards one field's value, for field numbers a
// message decoder does not care about.
func skipField(typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("pb: invalid field value: %w", protowire.ParseError(n))
	}

	return n, nil
}

func consumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("pb: invalid varint: %w", protowire.ParseError(n))
	}

	return v, n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("pb: invalid length-delimited field: %w", protowire.ParseError(n))
	}

	return v, n, nil
}

func consumeFixed32(b []byte) (uint32, int, error) {
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("pb: invalid fixed32: %w", protowire.ParseError(n))
	}

	return v, n, nil
}

// packedVarints decodes a packed repeated varint field (bytes-wire-type
// wrapping a run of varints), used for sint32/sint64/int32/int64/bool/enum
// "packed = true" fields like DenseNodes.id or PrimitiveBlock-level arrays.
func packedVarints(b []byte) ([]uint64, error) {
	var out []uint64

	for len(b) > 0 {
		v, n, err := consumeVarint(b)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
		b = b[n:]
	}

	return out, nil
}

func zigzag32(v uint64) int32 { return int32(protowire.DecodeZigZag(v)) }

func zigzag64(v uint64) int64 { return protowire.DecodeZigZag(v) }
