// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	base := []Option{
		WithTickDuration(100 * time.Millisecond),
		WithTicksPerWheel(8),
	}
	s, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %s\n", err)
	}
	return s
}

func TestScheduleRejectsNilTask(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := s.Schedule(nil, time.Second); err != ErrNilTask {
		t.Fatalf("Schedule(nil, ...): got %v, want ErrNilTask\n", err)
	}
}

func TestScheduleRejectsNegativeDelay(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := s.Schedule(func(*Timeout) {}, -time.Second); err != ErrInvalidDelay {
		t.Fatalf("Schedule(-1s): got %v, want ErrInvalidDelay\n", err)
	}
}

func TestStartAfterStopFails(t *testing.T) {
	s := newTestScheduler(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %s\n", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %s\n", err)
	}
	if err := s.Start(); err != ErrCannotRestart {
		t.Fatalf("Start after Stop: got %v, want ErrCannotRestart\n", err)
	}
}

func TestStopFromRunningTaskFails(t *testing.T) {
	s := newTestScheduler(t)
	var got error
	var wg sync.WaitGroup
	wg.Add(1)
	if _, err := s.Schedule(func(*Timeout) {
		defer wg.Done()
		_, got = s.Stop()
	}, 0); err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}
	wg.Wait()
	if got != ErrStopFromTask {
		t.Fatalf("Stop() from task: got %v, want ErrStopFromTask\n", got)
	}
	s.Stop()
}

// TestS1BelowTickDelay is scenario S1 from spec.md §8: a delay shorter than
// one tick still fires no earlier than requested, within the next couple of
// ticks.
func TestS1BelowTickDelay(t *testing.T) {
	s := newTestScheduler(t)
	start := time.Now()
	fired := make(chan time.Duration, 1)

	if _, err := s.Schedule(func(*Timeout) {
		fired <- time.Since(start)
	}, 30*time.Millisecond); err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}
	defer s.Stop()

	select {
	case d := <-fired:
		if d < 30*time.Millisecond {
			t.Fatalf("fired after %s, want >= 30ms\n", d)
		}
		if d > 300*time.Millisecond {
			t.Fatalf("fired after %s, want <= ~300ms\n", d)
		}
	case <-time.After(time.Second):
		t.Fatalf("task never fired\n")
	}
}

// TestS2ExactlyOneRound is scenario S2: delay == round duration lands the
// entry in the current slot with remaining_rounds == 0 (the -1 correction),
// firing after one full revolution.
func TestS2ExactlyOneRound(t *testing.T) {
	s := newTestScheduler(t) // tick=100ms, wheel=8 -> round=800ms
	cursor := s.wheel.loadCursor()

	tl := &Timeout{
		task:       func(*Timeout) {},
		deadlineMs: 800,
	}
	s.insert(tl, 800*time.Millisecond)

	if tl.remaining != 0 {
		t.Fatalf("remaining = %d, want 0\n", tl.remaining)
	}
	if tl.bucketIdx != cursor {
		t.Fatalf("bucketIdx = %d, want current cursor %d\n", tl.bucketIdx, cursor)
	}
}

// TestS3TwoAndAHalfRounds is scenario S3: delay=2050ms on tick=100ms,
// wheel=8 (round=800ms) yields relative_index=5, remaining_rounds=2.
func TestS3TwoAndAHalfRounds(t *testing.T) {
	s := newTestScheduler(t)
	cursor := s.wheel.loadCursor()

	tl := &Timeout{task: func(*Timeout) {}, deadlineMs: 2050}
	s.insert(tl, 2050*time.Millisecond)

	if tl.remaining != 2 {
		t.Fatalf("remaining = %d, want 2\n", tl.remaining)
	}
	wantIdx := (cursor + 5) & s.wheel.mask
	if tl.bucketIdx != wantIdx {
		t.Fatalf("bucketIdx = %d, want %d\n", tl.bucketIdx, wantIdx)
	}
}

// TestS4CancelBeforeFire is scenario S4: cancelling well before the
// deadline suppresses the task and is reflected by IsCancelled.
func TestS4CancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t)
	var fired int32

	tl, err := s.Schedule(func(*Timeout) { atomic.AddInt32(&fired, 1) }, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}
	time.Sleep(50 * time.Millisecond)

	if !tl.Cancel() {
		t.Fatalf("Cancel: want true\n")
	}
	if !tl.IsCancelled() {
		t.Fatalf("IsCancelled: want true\n")
	}

	time.Sleep(700 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("task fired %d times after cancel, want 0\n", fired)
	}
}

// TestS5CancelRaceAfterDrain is scenario S5: the worker has already moved
// the entry into its local expired list (simulated directly, bypassing the
// background goroutine) by the time Cancel races in; Cancel still wins the
// CAS and the task must be suppressed.
func TestS5CancelRaceAfterDrain(t *testing.T) {
	s := newTestScheduler(t)
	var fired int32

	tl := &Timeout{
		task:  func(*Timeout) { atomic.AddInt32(&fired, 1) },
		sched: s,
	}
	// Simulate: worker has drained tl (it is no longer linked into any
	// bucket; bucketIdx -1 keeps Cancel away from the wheel) but has not
	// yet called expire().
	tl.bucketIdx = -1

	if !tl.Cancel() {
		t.Fatalf("Cancel: want true\n")
	}
	if tl.expire() {
		t.Fatalf("expire() after Cancel: want false (CAS must fail)\n")
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("task invoked despite losing expire() race\n")
	}
}

// TestS6StopReturnsPending is scenario S6: scheduling a batch of far-future
// timeouts and stopping almost immediately returns exactly that batch,
// none of which fired.
func TestS6StopReturnsPending(t *testing.T) {
	s := newTestScheduler(t)
	const n = 100
	var fired int32

	for i := 0; i < n; i++ {
		delay := time.Duration(10+i%50) * time.Second
		if _, err := s.Schedule(func(*Timeout) { atomic.AddInt32(&fired, 1) }, delay); err != nil {
			t.Fatalf("Schedule #%d: %s\n", i, err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	pending, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %s\n", err)
	}
	if len(pending) != n {
		t.Fatalf("Stop returned %d pending timeouts, want %d\n", len(pending), n)
	}
	for _, tl := range pending {
		if tl.IsExpired() {
			t.Errorf("pending timeout already expired\n")
		}
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("%d tasks fired before Stop, want 0\n", fired)
	}
}

// TestS7CrossRevolutionSlippage is scenario S7: wheel size 2, tick=100ms,
// delay=150ms gives relative_index=2, which wraps across the revolution to
// bucket (0+2)&1 = 0 with remaining_rounds=0. The worker advances to bucket
// 1 on its first tick and reaches bucket 0 on its second (~200ms); the task
// must fire once, no earlier than 150ms.
func TestS7CrossRevolutionSlippage(t *testing.T) {
	s := newTestScheduler(t, WithTickDuration(100*time.Millisecond), WithTicksPerWheel(2))
	start := time.Now()
	fired := make(chan time.Duration, 1)
	var count int32

	if _, err := s.Schedule(func(*Timeout) {
		atomic.AddInt32(&count, 1)
		fired <- time.Since(start)
	}, 150*time.Millisecond); err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}
	defer s.Stop()

	select {
	case d := <-fired:
		if d < 150*time.Millisecond {
			t.Fatalf("fired after %s, want >= 150ms\n", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task never fired\n")
	}
	time.Sleep(300 * time.Millisecond)
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("task fired %d times, want exactly 1\n", count)
	}
}

func TestAtMostOnce(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Stop()
	var count int32
	done := make(chan struct{})

	if _, err := s.Schedule(func(*Timeout) {
		atomic.AddInt32(&count, 1)
		close(done)
	}, 20*time.Millisecond); err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}

	<-done
	time.Sleep(300 * time.Millisecond)
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("task fired %d times, want exactly 1\n", count)
	}
}

func TestDeviationAndRateObservers(t *testing.T) {
	var events int32
	var deviations int32
	devObs := observerFunc(func(int64) { atomic.AddInt32(&deviations, 1) })
	rateObs := rateFunc(func() { atomic.AddInt32(&events, 1) })

	s := newTestScheduler(t, WithDeviationObserver(devObs), WithRateObserver(rateObs))
	defer s.Stop()

	done := make(chan struct{})
	if _, err := s.Schedule(func(*Timeout) { close(done) }, 20*time.Millisecond); err != nil {
		t.Fatalf("Schedule: %s\n", err)
	}
	<-done
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&events) != 1 {
		t.Fatalf("rate observer fired %d times, want 1\n", events)
	}
	if atomic.LoadInt32(&deviations) != 1 {
		t.Fatalf("deviation observer fired %d times, want 1\n", deviations)
	}
}

type observerFunc func(int64)

func (f observerFunc) Observe(d int64) { f(d) }

type rateFunc func()

func (f rateFunc) Event() { f() }
