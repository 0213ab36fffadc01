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

	"github.com/yamahata/openvswitch/flow"
)

type Hello struct {
	Header
}

type EchoRequest struct {
	Header
	Data []byte
}

type EchoReply struct {
	Header
	Data []byte
}

type FeaturesRequest struct {
	Header
}

type FeaturesReply struct {
	Header
	DPID         uint64
	NumBuffers   uint32
	NumTables    uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PortDesc
}

type GetConfigRequest struct {
	Header
}

type GetConfigReply struct {
	Header
	Flags       uint16
	MissSendLen uint16
}

type SetConfig struct {
	Header
	Flags       uint16
	MissSendLen uint16
}

// FlowMod is the imperative flow table mutation request. Match and Actions
// arrive already decoded by the external byte codec.
type FlowMod struct {
	Header
	Command     uint16
	Match       *flow.Match
	Priority    uint16
	Cookie      uint64
	IdleTimeout uint16
	HardTimeout uint16
	BufferID    uint32
	OutPort     uint16
	Flags       uint16
	Actions     ActionList
}

// PacketOut executes an action list against a single packet without
// touching the rule table.
type PacketOut struct {
	Header
	BufferID uint32
	InPort   uint16
	Actions  ActionList
	Data     []byte
}

type PortMod struct {
	Header
	PortNo    uint16
	HWAddr    net.HardwareAddr
	Config    uint32
	Mask      uint32
	Advertise uint32
}

type BarrierRequest struct {
	Header
}

type BarrierReply struct {
	Header
}

type RoleRequest struct {
	Header
	Role Role
}

type RoleReply struct {
	Header
	Role Role
}

// SetFlowFormat selects the per-connection match encoding.
type SetFlowFormat struct {
	Header
	Format FlowFormat
}

// SetPacketInFormat selects the per-connection packet-in encoding.
type SetPacketInFormat struct {
	Header
	Format uint32
}
