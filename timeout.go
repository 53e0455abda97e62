// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import "sync/atomic"

// TaskFunc is the callback invoked when a Timeout fires. It receives the
// handle for the timeout that expired, mirroring the teacher's convention
// of passing the timer handler itself into the callback (timers.go's
// TimerHandlerF).
type TaskFunc func(*Timeout)

// Timeout represents one scheduled task: its deadline, the bucket it
// currently lives in, how many more full wheel revolutions it must sit out,
// and its lifecycle state. Field layout and doc register follow the
// teacher's TimerLnk (timers.go), trimmed to what a single-level wheel
// needs (no wheel-number, no run-queue bookkeeping, no re-arm flags).
type Timeout struct {
	next, prev *Timeout // intrusive list link, guarded by the owning bucket's mutex

	bucketIdx int32 // current bucket index, atomic (-1 until first insert)
	deadlineMs int64 // absolute expiry in the scheduler's Clock domain, immutable after construction
	remaining  int64 // remaining full wheel revolutions; set by insert before linking, then decremented only by the worker under the wheel's write lock

	state int32 // atomic: stateInit / stateCancelled / stateExpired

	task  TaskFunc
	sched *Scheduler
}

// Cancel atomically transitions the timeout from INIT to CANCELLED. On
// success it best-effort removes the entry from its current bucket (a
// no-op if the worker already drained it) and returns true. The at-most-once
// task guarantee does not depend on the bucket removal succeeding: it is
// enforced purely by the CAS racing against the worker's own INIT->EXPIRED
// CAS in expire().
func (t *Timeout) Cancel() bool {
	if !stateCAS(&t.state, stateInit, stateCancelled) {
		return false
	}
	if idx := atomic.LoadInt32(&t.bucketIdx); idx >= 0 {
		w := t.sched.wheel
		w.mu.RLock()
		w.buckets[idx].remove(t)
		w.mu.RUnlock()
	}
	return true
}

// IsCancelled reports whether Cancel won the race for this timeout.
func (t *Timeout) IsCancelled() bool {
	return stateLoad(&t.state) == stateCancelled
}

// IsExpired reports whether the task has fired (or is in the process of
// firing) for this timeout.
func (t *Timeout) IsExpired() bool {
	return stateLoad(&t.state) == stateExpired
}

// Task returns the callback this timeout was scheduled with.
func (t *Timeout) Task() TaskFunc {
	return t.task
}

// Scheduler returns the Scheduler that owns this timeout.
func (t *Timeout) Scheduler() *Scheduler {
	return t.sched
}

// expire is the worker-side counterpart of Cancel: CAS INIT->EXPIRED. If the
// CAS fails the entry was cancelled between the drain step and this call, so
// the task is suppressed. Returns whether the task should run.
func (t *Timeout) expire() bool {
	return stateCAS(&t.state, stateInit, stateExpired)
}
