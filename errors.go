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

package pbf

import "fmt"

// Kind classifies what went wrong decoding a PBF stream.
type Kind int

const (
	// ErrSystemCall means a local OS-level operation failed: opening a
	// file, forking a subprocess, reading a descriptor.
	ErrSystemCall Kind = iota

	// ErrSubprocessFailed means the fetch subprocess ran but exited with
	// a non-zero status.
	ErrSubprocessFailed

	// ErrDecompression means a blob's declared compression could not be
	// inflated, or the inflated size did not match what the blob claimed.
	ErrDecompression

	// ErrUnsupportedFeature means the file's header requires a feature
	// this reader does not implement, or a blob uses a compression this
	// reader deliberately rejects (lzma).
	ErrUnsupportedFeature

	// ErrProtocolViolation means the byte stream did not look like valid
	// PBF framing: a bad length prefix, a size past the ceilings, a blob
	// with no data field set.
	ErrProtocolViolation

	// ErrParseFailed means framing was fine but the protobuf payload
	// inside a blob did not decode.
	ErrParseFailed
)

func (k Kind) String() string {
	switch k {
	case ErrSystemCall:
		return "system call failed"
	case ErrSubprocessFailed:
		return "subprocess failed"
	case ErrDecompression:
		return "decompression failed"
	case ErrUnsupportedFeature:
		return "unsupported feature"
	case ErrProtocolViolation:
		return "protocol violation"
	case ErrParseFailed:
		return "parse failed"
	default:
		return "unknown error"
	}
}

// Error is the error type every failure this package returns is, or wraps,
// as. Use errors.As to recover the Kind and any positional context.
type Error struct {
	Kind       Kind
	Op         string
	BlockIndex int
	Offset     int64
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pbf: %s: %s", e.Op, e.Kind)
	if e.BlockIndex > 0 {
		msg = fmt.Sprintf("%s (block %d)", msg, e.BlockIndex)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &pbf.Error{Kind: pbf.ErrUnsupportedFeature}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

func wrapErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
