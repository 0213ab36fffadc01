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

// Package openflow defines the version-independent control protocol
// surface consumed by the switch core: typed messages, protocol constants,
// the action-list model, and the interfaces of the external match/action
// byte codecs. Byte-level framing and TLV encoding live outside this
// module; connections deliver whole, decoded messages.
package openflow

const (
	OF10_VERSION uint8 = 0x01
	OF11_VERSION uint8 = 0x02
	OF13_VERSION uint8 = 0x04
)

// Reserved port numbers.
const (
	OFPP_MAX        uint16 = 0xFF00
	OFPP_IN_PORT    uint16 = 0xFFF8
	OFPP_TABLE      uint16 = 0xFFF9
	OFPP_NORMAL     uint16 = 0xFFFA
	OFPP_FLOOD      uint16 = 0xFFFB
	OFPP_ALL        uint16 = 0xFFFC
	OFPP_CONTROLLER uint16 = 0xFFFD
	OFPP_LOCAL      uint16 = 0xFFFE
	OFPP_NONE       uint16 = 0xFFFF
)

// Port configuration bits.
const (
	OFPPC_PORT_DOWN    uint32 = 1 << 0
	OFPPC_NO_STP       uint32 = 1 << 1
	OFPPC_NO_RECV      uint32 = 1 << 2
	OFPPC_NO_RECV_STP  uint32 = 1 << 3
	OFPPC_NO_FLOOD     uint32 = 1 << 4
	OFPPC_NO_FWD       uint32 = 1 << 5
	OFPPC_NO_PACKET_IN uint32 = 1 << 6
)

// Port state bits.
const (
	OFPPS_LINK_DOWN uint32 = 1 << 0
)

// Port feature bits. Only the speed-related subset is interpreted by the
// core (for the current-speed port attribute); the rest is carried opaquely.
const (
	OFPPF_10MB_HD  uint32 = 1 << 0
	OFPPF_10MB_FD  uint32 = 1 << 1
	OFPPF_100MB_HD uint32 = 1 << 2
	OFPPF_100MB_FD uint32 = 1 << 3
	OFPPF_1GB_HD   uint32 = 1 << 4
	OFPPF_1GB_FD   uint32 = 1 << 5
	OFPPF_10GB_FD  uint32 = 1 << 6
	OFPPF_COPPER   uint32 = 1 << 7
	OFPPF_FIBER    uint32 = 1 << 8
	OFPPF_AUTONEG  uint32 = 1 << 9
	OFPPF_PAUSE    uint32 = 1 << 10
)

// Flow mod commands.
const (
	OFPFC_ADD uint16 = iota
	OFPFC_MODIFY
	OFPFC_MODIFY_STRICT
	OFPFC_DELETE
	OFPFC_DELETE_STRICT
)

// Flow mod flags.
const (
	OFPFF_SEND_FLOW_REM uint16 = 1 << 0
	OFPFF_CHECK_OVERLAP uint16 = 1 << 1
	OFPFF_EMERG         uint16 = 1 << 2
)

// RemovedReason explains why a rule left the table.
type RemovedReason uint8

const (
	OFPRR_IDLE_TIMEOUT RemovedReason = iota
	OFPRR_HARD_TIMEOUT
	OFPRR_DELETE
	OFPRR_GROUP_DELETE
)

// PortReason qualifies a port-status notification.
type PortReason uint8

const (
	OFPPR_ADD PortReason = iota
	OFPPR_DELETE
	OFPPR_MODIFY
)

// PacketInReason explains why a packet was sent up to the controller.
type PacketInReason uint8

const (
	OFPR_NO_MATCH PacketInReason = iota
	OFPR_ACTION
)

// Fragment handling policy.
const (
	OFPC_FRAG_NORMAL uint16 = 0
	OFPC_FRAG_DROP   uint16 = 1
	OFPC_FRAG_REASM  uint16 = 2
	OFPC_FRAG_MASK   uint16 = 3
)

// Switch capability bits advertised in the features reply.
const (
	OFPC_FLOW_STATS   uint32 = 1 << 0
	OFPC_TABLE_STATS  uint32 = 1 << 1
	OFPC_PORT_STATS   uint32 = 1 << 2
	OFPC_ARP_MATCH_IP uint32 = 1 << 7
)

// Role is a per-connection permission level. A slave connection is
// read-only: every state-mutating request on it is rejected.
type Role uint32

const (
	RoleOther Role = iota
	RoleMaster
	RoleSlave
)

// FlowFormat selects the match encoding a connection uses on the wire.
type FlowFormat uint32

const (
	FormatOpenflow10 FlowFormat = iota
	FormatTunIDFromCookie
	FormatNXM
)

// NoBuffer is the buffer id meaning "no packet buffered".
const NoBuffer uint32 = 0xFFFFFFFF

// VisiblePriorityMax is the highest rule priority expressible in the
// protocol. Rules above it are switch-internal and hidden from
// controllers.
const VisiblePriorityMax uint32 = 0xFFFF

// MaxMessageSize is the largest single wire message. Statistics replies
// exceeding it are chunked with the More flag set.
const MaxMessageSize = 0xFFFF

// Message is any control message exchanged with a controller connection.
type Message interface {
	Version() uint8
	XID() uint32
}

// Header carries the fields common to all messages.
type Header struct {
	Ver uint8
	Xid uint32
}

func (r Header) Version() uint8 {
	return r.Ver
}

func (r Header) XID() uint32 {
	return r.Xid
}
