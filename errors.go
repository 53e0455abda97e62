// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"errors"
)

var ErrNilTask = errors.New("task is nil")
var ErrInvalidDelay = errors.New("delay is negative")
var ErrTickTooSmall = errors.New("tick duration must be greater than 0")
var ErrTicksPerWheelTooSmall = errors.New("ticks per wheel must be greater than 0")
var ErrTicksPerWheelTooLarge = errors.New("ticks per wheel may not be greater than 2^30")
var ErrOverflow = errors.New("tick duration too long, round duration would overflow")
var ErrCannotRestart = errors.New("cannot be restarted once stopped")
var ErrStopFromTask = errors.New("Stop() cannot be called from a running task")
