// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import "time"

// Spawn produces the goroutine the worker loop runs on. Plays the role of
// the teacher's/Netty's ThreadFactory: callers wanting a named, pooled, or
// otherwise managed goroutine can supply their own.
type Spawn func(name string, fn func())

func defaultSpawn(_ string, fn func()) {
	go fn()
}

// Option configures a Scheduler at construction time, in the functional-
// options idiom (the Go-native equivalent of the teacher's flags-bitmask
// configuration surface in timers.go's Reset(tl, flags)).
type Option func(*config)

type config struct {
	tickDuration  time.Duration
	ticksPerWheel int
	spawn         Spawn
	clock         Clock
	sleeper       Sleeper
	devObserver   DeviationObserver
	rateObserver  RateObserver
}

func defaultConfig() *config {
	return &config{
		tickDuration:  100 * time.Millisecond,
		ticksPerWheel: 512,
		spawn:         defaultSpawn,
		clock:         newMonoClock(),
		sleeper:       realSleeper{},
		devObserver:   noopDeviationObserver{},
		rateObserver:  noopRateObserver{},
	}
}

// WithTickDuration overrides the default 100ms tick granularity.
func WithTickDuration(d time.Duration) Option {
	return func(c *config) { c.tickDuration = d }
}

// WithTicksPerWheel overrides the default wheel size of 512 slots. It is
// rounded up to the next power of two.
func WithTicksPerWheel(n int) Option {
	return func(c *config) { c.ticksPerWheel = n }
}

// WithSpawn overrides how the worker goroutine is started.
func WithSpawn(s Spawn) Option {
	return func(c *config) { c.spawn = s }
}

// WithClock overrides the monotonic millisecond clock used for deadline
// arithmetic. See SPEC_FULL.md §9 (clock source open question).
func WithClock(cl Clock) Option {
	return func(c *config) { c.clock = cl }
}

// WithSleeper overrides the interruptible sleep primitive the worker uses
// between ticks.
func WithSleeper(s Sleeper) Option {
	return func(c *config) { c.sleeper = s }
}

// WithDeviationObserver registers a collaborator notified with
// fire-time-minus-deadline (in ms) for every fired timeout.
func WithDeviationObserver(o DeviationObserver) Option {
	return func(c *config) { c.devObserver = o }
}

// WithRateObserver registers a collaborator notified once per fired timeout.
func WithRateObserver(o RateObserver) Option {
	return func(c *config) { c.rateObserver = o }
}
