// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// isWindowsSleepQuantized gates the historical Windows sleep-rounding
// workaround from the original HashedWheelTimer (spec.md §4.2/§9): on a
// platform whose sleep primitive suffers sub-10ms quantization, rounding the
// requested sleep down to a multiple of 10ms avoids a busy-wait. Kept as a
// var, not a const, so a test can flip it without needing to cross-compile.
var isWindowsSleepQuantized = runtime.GOOS == "windows"

// run is the single background worker: advance the cursor one tick per
// tickDuration, drain the current bucket, classify entries, dispatch user
// tasks. Corresponds to the teacher's Worker.run() shape in the original
// HashedWheelTimer and to wtimer_ticker.go's ticker()/advanceTimeTo() pair.
func (s *Scheduler) run() {
	atomic.StoreUint64(&s.workerGID, goroutineID())
	defer close(s.doneCh)

	startMs := s.clock.NowMillis()
	var tick int64 = 1

	for atomic.LoadInt32(&s.state) == schedStarted {
		deadline, stopped := s.waitForNextTick(startMs, tick)
		if stopped {
			return
		}
		tick++

		expired, slipped := s.advanceAndDrain(deadline)
		s.rescheduleSlipped(slipped, deadline)
		s.fire(expired)
	}
}

// waitForNextTick blocks until tick*tickDuration ms have elapsed since
// startMs, recomputing the remaining sleep on every wakeup the way
// HashedWheelTimer.Worker.waitForNextTick does. Returns the sentinel
// (stopped=true) if the scheduler left STARTED while sleeping.
func (s *Scheduler) waitForNextTick(startMs, tick int64) (deadline int64, stopped bool) {
	deadline = startMs + s.wheel.tickMs*tick
	for {
		current := s.clock.NowMillis()
		sleepMs := s.wheel.tickMs*tick - (current - startMs)

		if isWindowsSleepQuantized {
			sleepMs = (sleepMs / 10) * 10
		}

		if sleepMs <= 0 {
			return deadline, false
		}

		if interrupted := s.sleeper.Sleep(time.Duration(sleepMs)*time.Millisecond, s.stopCh); interrupted {
			if atomic.LoadInt32(&s.state) != schedStarted {
				return 0, true
			}
			// woken for some other reason while still started: loop and
			// recompute the remaining sleep.
		}
	}
}

// advanceAndDrain advances the cursor by one slot and drains its bucket
// under the wheel's write lock, classifying each entry into "still has
// rounds to sit out" (kept, rounds decremented), "expired" (deadline has
// passed) or "slipped" (rounds exhausted but deadline still ahead, usually
// one tick early due to the +1 rounding in insert's relative-index math).
func (s *Scheduler) advanceAndDrain(workerDeadline int64) (expired, slipped []*Timeout) {
	w := s.wheel

	w.mu.Lock()
	newCursor := (w.loadCursor() + 1) & w.mask
	atomic.StoreInt32(&w.cursor, newCursor)

	w.buckets[newCursor].drain(func(t *Timeout) bool {
		if t.remaining > 0 {
			t.remaining--
			return false
		}
		if t.deadlineMs <= workerDeadline {
			expired = append(expired, t)
		} else {
			slipped = append(slipped, t)
		}
		return true
	})
	w.mu.Unlock()

	return expired, slipped
}

// rescheduleSlipped re-inserts every slipped entry for delay = deadline -
// workerDeadline, which lands it either in the next slot (one more tick,
// remaining_rounds 0) when the delta is at most one tick, or at its true
// future slot if the delta is larger. Entries cancelled in the window between the drain above and this
// call are skipped rather than silently re-armed.
func (s *Scheduler) rescheduleSlipped(slipped []*Timeout, workerDeadline int64) {
	for _, t := range slipped {
		if stateLoad(&t.state) != stateInit {
			continue
		}
		delta := t.deadlineMs - workerDeadline
		if delta < 0 {
			delta = 0
		}
		s.insert(t, time.Duration(delta)*time.Millisecond)
	}
}

// fire invokes expire() on every expired entry in reverse order (a
// historical artifact of the original implementation with no observable
// semantic effect, since same-tick ordering is never guaranteed) outside
// the wheel lock.
func (s *Scheduler) fire(expired []*Timeout) {
	for i := len(expired) - 1; i >= 0; i-- {
		s.runOne(expired[i])
	}
}

func (s *Scheduler) runOne(t *Timeout) {
	if !t.expire() {
		return // cancelled between drain and fire
	}

	s.rateObs.Event()
	s.devObs.Observe(s.clock.NowMillis() - t.deadlineMs)

	defer func() {
		if r := recover(); r != nil && WARNon() {
			WARN("task panicked: %v\n", r)
		}
	}()
	t.task(t)
}

// goroutineID extracts the calling goroutine's id by parsing the header
// line of a minimal runtime.Stack dump. Go has no public goroutine-id API
// and none of the pack's modules offers one (the usual community answer,
// e.g. petermattis/goid, is not among them); this is the standard
// stdlib-only workaround, used here solely to approximate the teacher's
// "is this the worker thread" identity check for Stop().
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}
