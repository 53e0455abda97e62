// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"math"
	"sync"
	"sync/atomic"
)

const maxTicksPerWheel = 1 << 30

// wheel is the fixed-size power-of-two array of buckets plus the cursor,
// mask and per-revolution duration. Its role is the single-level analogue
// of the teacher's [4]wheel array in wtimer.go, minus the 4 levels and the
// redistribution machinery a single level has no use for.
type wheel struct {
	mu      sync.RWMutex // readers: schedule/cancel bucket mutation; writer: cursor advance + drain
	buckets []bucket
	mask    int32
	cursor  int32 // atomic; written only by the worker, published with release/acquire semantics

	tickMs  int64
	roundMs int64
}

func newWheel(tickMs int64, ticksPerWheel int) (*wheel, error) {
	if tickMs <= 0 {
		return nil, ErrTickTooSmall
	}
	if ticksPerWheel <= 0 {
		return nil, ErrTicksPerWheelTooSmall
	}
	if ticksPerWheel > maxTicksPerWheel {
		return nil, ErrTicksPerWheelTooLarge
	}

	size := normalizeTicksPerWheel(ticksPerWheel)
	if tickMs >= math.MaxInt64/int64(size) {
		return nil, ErrOverflow
	}

	w := &wheel{
		buckets: make([]bucket, size),
		mask:    int32(size - 1),
		tickMs:  tickMs,
		roundMs: tickMs * int64(size),
	}
	for i := range w.buckets {
		w.buckets[i].init()
	}
	return w, nil
}

// normalizeTicksPerWheel rounds n up to the next power of two.
func normalizeTicksPerWheel(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (w *wheel) loadCursor() int32 {
	return atomic.LoadInt32(&w.cursor)
}

// drainAll empties every bucket and returns every timeout still present in
// any of them (used by Stop() to hand pending timeouts back to the caller).
func (w *wheel) drainAll() []*Timeout {
	var out []*Timeout
	for i := range w.buckets {
		w.buckets[i].drain(func(t *Timeout) bool {
			out = append(out, t)
			return true
		})
	}
	return out
}
