// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync"
	"time"

	"github.com/intuitivelabs/timestamp"
)

// Clock produces the monotonic millisecond values the wheel uses for
// deadline arithmetic. It is dependency-injected: a caller needing the
// original HashedWheelTimer's wall-clock-ms behavior (vulnerable to system
// clock jumps) can supply one, while the default wiring below is monotonic.
type Clock interface {
	NowMillis() int64
}

// Sleeper blocks the worker goroutine between ticks. Unlike a raw
// time.Sleep, it is interruptible: Sleep returns early, reporting true, if
// stop is closed before d elapses.
type Sleeper interface {
	Sleep(d time.Duration, stop <-chan struct{}) (interrupted bool)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-stop:
		return true
	}
}

// monoClock adapts github.com/intuitivelabs/timestamp into a Clock. It
// reproduces the reference-timestamp technique wtimer_ticker.go uses
// (refTS/refTicks/badTime) to derive a monotone millisecond counter and to
// notice (rather than silently trust) a misbehaving underlying time source.
type monoClock struct {
	mu       sync.Mutex
	refTS    timestamp.TS
	refMs    int64
	badJumps uint32
}

func newMonoClock() *monoClock {
	return &monoClock{refTS: timestamp.Now()}
}

func (c *monoClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := timestamp.Now()
	if now.Before(c.refTS) {
		c.badJumps++
		if ERRon() {
			ERR("clock went backwards relative to reference ts (%d times so far)\n",
				c.badJumps)
		}
		return c.refMs
	}
	return c.refMs + now.Sub(c.refTS).Milliseconds()
}
