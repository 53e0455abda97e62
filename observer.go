// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

// DeviationObserver records, for every fired timeout, how tardy the fire was
// relative to its deadline (fire time - deadline, in milliseconds). It plays
// the role of Netty's ValueDistributionMonitor collaborator; this package
// does not force any particular metrics library on the caller, it only
// defines the shape the wheel will call into.
type DeviationObserver interface {
	Observe(deltaMs int64)
}

// RateObserver counts one event per fired timeout. Plays the role of
// Netty's EventRateMonitor collaborator.
type RateObserver interface {
	Event()
}

type noopDeviationObserver struct{}

func (noopDeviationObserver) Observe(int64) {}

type noopRateObserver struct{}

func (noopRateObserver) Event() {}
