// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"fmt"

	"github.com/intuitivelabs/slog"
)

// Log is the package-wide logger, in the same spirit as the teacher's own
// implicit package-wide DBG()/ERR()/WARN() call surface (wtimer.go,
// timer_lst.go): one shared level-gated logger rather than per-instance
// loggers threaded through every call. Callers that want quieter or louder
// output reassign it directly, e.g.
// hwheel.Log = slog.New(slog.LNOTICE, slog.LOptNone, slog.LDefaultOut).
var Log = slog.New(slog.LWARN, slog.LOptNone, slog.LDefaultOut)

func DBGon() bool  { return Log.DBGon() }
func ERRon() bool  { return Log.ERRon() }
func WARNon() bool { return Log.WARNon() }

func DBG(f string, args ...interface{})  { Log.DBG(f, args...) }
func ERR(f string, args ...interface{})  { Log.ERR(f, args...) }
func WARN(f string, args ...interface{}) { Log.WARN(f, args...) }

// BUG logs an internal invariant violation at ERR level and panics: reaching
// one means the wheel's own bookkeeping is wrong, not that the caller misused
// the API (mirrors timer_lst.go's PANIC() calls on corrupted list links).
func BUG(f string, args ...interface{}) {
	Log.ERR("BUG: "+f, args...)
	panic(fmt.Sprintf("BUG: "+f, args...))
}

func PANIC(f string, args ...interface{}) {
	Log.ERR("PANIC: "+f, args...)
	panic(fmt.Sprintf("PANIC: "+f, args...))
}
