/*
 * openvswitch - an OpenFlow software switch core
 *
 * Copyright (C) 2015 The openvswitch authors. All rights reserved.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package netdev

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrAgain means the feed has no pending change right now.
	ErrAgain = errors.New("no pending device change")
	// ErrOverflow means the feed lost track of individual changes and
	// the consumer must rescan every device.
	ErrOverflow = errors.New("device change queue overflowed")
)

// monitorQueueLimit bounds the pending change queue. Past it the monitor
// degrades to a bulk-invalidate, like a netlink socket hitting ENOBUFS.
const monitorQueueLimit = 256

// Monitor is a non-blocking feed of device change notifications keyed by
// device name. Producers call Notify; the switch run loop drains it with
// Poll.
type Monitor struct {
	mu       sync.Mutex
	queue    []string
	queued   map[string]bool
	overflow bool
}

func NewMonitor() *Monitor {
	return &Monitor{queued: make(map[string]bool)}
}

// Notify records that the named device changed. Duplicate notifications
// collapse into one.
func (r *Monitor) Notify(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overflow || r.queued[name] {
		return
	}
	if len(r.queue) >= monitorQueueLimit {
		r.overflow = true
		r.queue = nil
		r.queued = make(map[string]bool)
		return
	}
	r.queue = append(r.queue, name)
	r.queued[name] = true
}

// NotifyAll forces a bulk invalidate: the next Poll returns ErrOverflow.
func (r *Monitor) NotifyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overflow = true
	r.queue = nil
	r.queued = make(map[string]bool)
}

// Poll returns the next changed device name, ErrOverflow once after a
// bulk invalidate, or ErrAgain when nothing is pending. It never blocks.
func (r *Monitor) Poll() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overflow {
		r.overflow = false
		return "", ErrOverflow
	}
	if len(r.queue) == 0 {
		return "", ErrAgain
	}
	name := r.queue[0]
	r.queue = r.queue[1:]
	delete(r.queued, name)

	return name, nil
}
