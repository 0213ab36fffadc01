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

// Package flow provides the packet field values extracted from a frame and
// the wildcard-capable match patterns that forwarding rules are keyed by.
package flow

import (
	"fmt"
	"net"
)

// Flow is the set of packet header field values used as a lookup key
// against the rule table. A zero value in a field simply means the packet
// did not carry that header.
type Flow struct {
	InPort   uint16
	EthSrc   net.HardwareAddr
	EthDst   net.HardwareAddr
	EthType  uint16
	VLANID   uint16
	VLANPCP  uint8
	IPProto  uint8
	IPTOS    uint8
	IPSrc    net.IP
	IPDst    net.IP
	SrcPort  uint16
	DstPort  uint16
	TunnelID uint64
}

func (r *Flow) String() string {
	return fmt.Sprintf("in_port=%v, dl_src=%v, dl_dst=%v, dl_type=%#x, nw_proto=%v, nw_src=%v, nw_dst=%v, tp_src=%v, tp_dst=%v",
		r.InPort, r.EthSrc, r.EthDst, r.EthType, r.IPProto, r.IPSrc, r.IPDst, r.SrcPort, r.DstPort)
}
