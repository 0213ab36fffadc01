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

import (
	"net"
	"time"

	"github.com/yamahata/openvswitch/flow"
)

// PortDesc is the full description record of one forwarding port, embedded
// in features replies and port-status notifications.
type PortDesc struct {
	PortNo     uint16
	Name       string
	HWAddr     net.HardwareAddr
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

// IsPortDown reports whether the port is administratively down.
func (r *PortDesc) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

// IsLinkDown reports whether the port has no carrier.
func (r *PortDesc) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

// Speed returns the current speed in kbps derived from the feature bits.
func (r *PortDesc) Speed() uint32 {
	switch {
	case r.Curr&OFPPF_10GB_FD != 0:
		return 10 * 1000 * 1000
	case r.Curr&(OFPPF_1GB_HD|OFPPF_1GB_FD) != 0:
		return 1000 * 1000
	case r.Curr&(OFPPF_100MB_HD|OFPPF_100MB_FD) != 0:
		return 100 * 1000
	case r.Curr&(OFPPF_10MB_HD|OFPPF_10MB_FD) != 0:
		return 10 * 1000
	default:
		return 0
	}
}

// PacketIn delivers a packet (miss or controller-directed) upward.
type PacketIn struct {
	Header
	BufferID uint32
	InPort   uint16
	Reason   PacketInReason
	TotalLen uint16
	Data     []byte
}

// FlowRemoved reports a rule's deletion or expiration with its final
// counters. Never emitted for hidden rules or rules that did not request
// removal notification.
type FlowRemoved struct {
	Header
	Match       *flow.Match
	Priority    uint16
	Cookie      uint64
	Reason      RemovedReason
	Duration    time.Duration
	IdleTimeout uint16
	PacketCount uint64
	ByteCount   uint64
}

// PortStatus reports a port add, delete, or property change with the full
// description record.
type PortStatus struct {
	Header
	Reason PortReason
	Desc   PortDesc
}
