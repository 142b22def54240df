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

package core

import "sync"

// ErrorCell holds the first error reported to it and ignores the rest. It
// mirrors the captured-exception slot that a background read thread uses to
// hand a failure back to the goroutine that is waiting on it.
type ErrorCell struct {
	mu   sync.Mutex
	err  error
	read bool
}

// Set records err if this is the first call; later calls are no-ops.
func (c *ErrorCell) Set(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil {
		c.err = err
	}
}

// Err returns the recorded error, or nil if none was ever set. Unlike Take,
// it does not consume the error: repeated calls keep seeing it.
func (c *ErrorCell) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Take returns the recorded error the first time it is called and nil on
// every call after that, regardless of whether the first call happened
// before or after Set. This gives callers the "first call re-raises it;
// subsequent calls see end-of-stream" behavior a one-shot background error
// needs, without requiring Set and Take to race over who saw the error
// first.
func (c *ErrorCell) Take() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.read {
		return nil
	}

	c.read = true

	return c.err
}
