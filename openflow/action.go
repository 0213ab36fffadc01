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

package openflow

import "reflect"

// Action is one element of a rule's ordered action list. The core
// interprets Output and Enqueue (for out-port constrained delete and
// stats filtering); everything else passes through to the backend opaquely.
type Action interface {
	// WireLen is the encoded size in bytes, used to chunk statistics
	// replies at the message size limit.
	WireLen() int
}

// OutputAction forwards the packet to a port. MaxLen bounds the bytes sent
// when the port is the controller.
type OutputAction struct {
	Port   uint16
	MaxLen uint16
}

func (r OutputAction) WireLen() int { return 8 }

// EnqueueAction forwards the packet to a queue attached to a port.
type EnqueueAction struct {
	Port    uint16
	QueueID uint32
}

func (r EnqueueAction) WireLen() int { return 16 }

// VendorAction is an opaque vendor extension action.
type VendorAction struct {
	Vendor uint32
	Body   []byte
}

func (r VendorAction) WireLen() int { return (8 + len(r.Body) + 7) / 8 * 8 }

// RawAction is any other action, carried opaquely between the codec and
// the backend.
type RawAction struct {
	Type uint16
	Body []byte
}

func (r RawAction) WireLen() int { return (4 + len(r.Body) + 7) / 8 * 8 }

// ActionList is a rule's ordered action list.
type ActionList []Action

// OutputsTo reports whether any action in the list forwards to the given
// port. OFPP_NONE matches every list, mirroring the "no out-port
// constraint" convention of flow delete and stats requests.
func (r ActionList) OutputsTo(port uint16) bool {
	if port == OFPP_NONE {
		return true
	}
	for _, a := range r {
		switch act := a.(type) {
		case OutputAction:
			if act.Port == port {
				return true
			}
		case EnqueueAction:
			if act.Port == port {
				return true
			}
		}
	}

	return false
}

// Equal reports whether two action lists are identical in order and content.
func (r ActionList) Equal(m ActionList) bool {
	if len(r) != len(m) {
		return false
	}
	if len(r) == 0 {
		return true
	}

	return reflect.DeepEqual(r, m)
}

// WireLen is the encoded size of the whole list.
func (r ActionList) WireLen() int {
	n := 0
	for _, a := range r {
		n += a.WireLen()
	}

	return n
}

// Clone returns a copy so that a rule owns its action list exclusively.
func (r ActionList) Clone() ActionList {
	if r == nil {
		return nil
	}
	c := make(ActionList, len(r))
	copy(c, r)

	return c
}
