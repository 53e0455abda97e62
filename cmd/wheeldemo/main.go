// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Command wheeldemo exercises the hwheel scheduler end to end: it schedules
// a handful of timeouts with varied delays, cancels one before it fires,
// and prints every fire event as it happens.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/axislabs/hwheel"
)

func main() {
	tick := flag.Duration("tick", 100*time.Millisecond, "wheel tick duration")
	ticksPerWheel := flag.Int("ticks-per-wheel", 512, "wheel size (rounded up to a power of two)")
	flag.Parse()

	s, err := hwheel.New(
		hwheel.WithTickDuration(*tick),
		hwheel.WithTicksPerWheel(*ticksPerWheel),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wheeldemo: %s\n", err)
		os.Exit(1)
	}

	start := time.Now()
	label := func(t *hwheel.Timeout) string { return fmt.Sprintf("%p", t) }
	fire := func(t *hwheel.Timeout) {
		fmt.Printf("[%8s] fired  %s\n", time.Since(start).Round(time.Millisecond), label(t))
	}

	delays := []time.Duration{
		50 * time.Millisecond,
		300 * time.Millisecond,
		800 * time.Millisecond,
		1500 * time.Millisecond,
	}

	var toCancel *hwheel.Timeout
	for i, d := range delays {
		tl, err := s.Schedule(fire, d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wheeldemo: schedule: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("[%8s] armed  %s  delay=%s\n", time.Since(start).Round(time.Millisecond), label(tl), d)
		if i == 1 {
			toCancel = tl
		}
	}

	time.Sleep(100 * time.Millisecond)
	if toCancel.Cancel() {
		fmt.Printf("[%8s] cancel %s  (cancelled=%v)\n",
			time.Since(start).Round(time.Millisecond), label(toCancel), toCancel.IsCancelled())
	}

	time.Sleep(2 * time.Second)

	pending, err := s.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wheeldemo: stop: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("stopped, %d timeout(s) still pending\n", len(pending))
}
