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

import "osmstream.dev/pbf/model"

type config struct {
	mask               model.EntityMask
	workers            int
	highWaterMark      int
	completedQueueSize int
}

func defaultConfig() config {
	return config{
		mask:               model.MaskAll,
		workers:            4,
		highWaterMark:      10,
		completedQueueSize: 20,
	}
}

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*config)

// WithEntityMask restricts decoding to the entity kinds set in mask, so
// groups of an ungranted kind are skipped without allocating their members.
func WithEntityMask(mask model.EntityMask) ReaderOption {
	return func(c *config) { c.mask = mask }
}

// WithWorkers sets how many goroutines parse primitive blocks concurrently.
func WithWorkers(n int) ReaderOption {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithHighWaterMark caps how many parse jobs the dispatch goroutine may have
// outstanding before it pauses reading more frames off the source.
func WithHighWaterMark(n int) ReaderOption {
	return func(c *config) {
		if n > 0 {
			c.highWaterMark = n
		}
	}
}

// WithCompletedQueueSize caps how many already-submitted Futures may sit in
// the ordered completion queue awaiting NextBatch.
func WithCompletedQueueSize(n int) ReaderOption {
	return func(c *config) {
		if n > 0 {
			c.completedQueueSize = n
		}
	}
}
