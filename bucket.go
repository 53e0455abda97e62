// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import "sync"

// bucket is the concurrent set of timeouts hashing to one wheel slot: an
// intrusive circular doubly-linked list (the same pointer-surgery idiom
// timer_lst.go uses for its timerLst: a sentinel head node, next/prev fields
// embedded directly in the element, no extra allocation per insert) guarded
// by its own mutex. The mutex exists because, unlike the teacher's single
// global opLock, this wheel lets many producer goroutines hold the wheel's
// shared read lock at once (see scheduler.go); two of them could otherwise
// race appending to the very same bucket.
type bucket struct {
	mu   sync.Mutex
	head Timeout // sentinel; only next/prev are meaningful on this node
}

func (b *bucket) init() {
	b.head.next = &b.head
	b.head.prev = &b.head
}

// add appends t to the bucket. t must be detached (not linked anywhere).
func (b *bucket) add(t *Timeout) {
	b.mu.Lock()
	t.prev = b.head.prev
	t.next = &b.head
	t.prev.next = t
	b.head.prev = t
	b.mu.Unlock()
}

// remove detaches t if it is still linked into this bucket. Set-removal
// semantics: removing an element already absent is a no-op returning false
// (the worker may have already drained it).
func (b *bucket) remove(t *Timeout) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.next == nil || t.prev == nil {
		return false
	}
	t.prev.next = t.next
	t.next.prev = t.prev
	t.next = nil
	t.prev = nil
	return true
}

// drain walks every entry currently in the bucket, calling visit(t) for
// each. visit returns true to detach t from the bucket (e.g. it expired or
// slipped), false to leave it linked (e.g. its remaining-rounds counter was
// just decremented). The whole walk runs under the bucket's mutex, the same
// way timer_lst.go's forEachSafeRm() supports safe mid-iteration removal.
func (b *bucket) drain(visit func(t *Timeout) (remove bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.head.next
	for v != &b.head {
		next := v.next
		if visit(v) {
			v.prev.next = v.next
			v.next.prev = v.prev
			v.next = nil
			v.prev = nil
		}
		v = next
	}
}
