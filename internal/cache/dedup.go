// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package cache

import (
	"container/list"
	"sync"
	"time"
)

type dedupEntry struct {
	key    string
	seenAt time.Time
}

// Dedup remembers recently seen keys for a fixed window, evicting the least
// recently seen key once capacity is reached. All operations are O(1).
type Dedup struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	order    *list.List // front = most recent
	index    map[string]*list.Element
	now      func() time.Time

	duplicates int64
	evictions  int64
}

// NewDedup returns a Dedup. Non-positive arguments fall back to 10000 keys
// and a 10 minute window.
func NewDedup(capacity int, window time.Duration) *Dedup {
	if capacity <= 0 {
		capacity = 10000
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Dedup{
		capacity: capacity,
		window:   window,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Seen reports whether key was recorded within the window. A key that was
// not seen is recorded, so the first call returns false and repeats return
// true until the window passes.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.index[key]; ok {
		e := el.Value.(*dedupEntry)
		if now.Sub(e.seenAt) < d.window {
			d.order.MoveToFront(el)
			d.duplicates++
			return true
		}
		d.order.Remove(el)
		delete(d.index, key)
	}

	d.index[key] = d.order.PushFront(&dedupEntry{key: key, seenAt: now})
	for d.order.Len() > d.capacity {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(*dedupEntry).key)
		d.evictions++
	}
	return false
}

// Forget removes key so the next Seen returns false.
func (d *Dedup) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.index[key]; ok {
		d.order.Remove(el)
		delete(d.index, key)
	}
}

// Stats returns duplicate hits, evictions and current size.
func (d *Dedup) Stats() (duplicates, evictions int64, size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duplicates, d.evictions, d.order.Len()
}
