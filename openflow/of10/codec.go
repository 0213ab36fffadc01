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

// Package of10 is the OpenFlow 1.0 byte codec for match patterns and
// action lists.
package of10

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/openflow"
)

// MatchLen is the encoded size of an ofp_match.
const MatchLen = 40

// Wire wildcard bits of ofp_match.
const (
	OFPFW_IN_PORT     uint32 = 1 << 0
	OFPFW_DL_VLAN     uint32 = 1 << 1
	OFPFW_DL_SRC      uint32 = 1 << 2
	OFPFW_DL_DST      uint32 = 1 << 3
	OFPFW_DL_TYPE     uint32 = 1 << 4
	OFPFW_NW_PROTO    uint32 = 1 << 5
	OFPFW_TP_SRC      uint32 = 1 << 6
	OFPFW_TP_DST      uint32 = 1 << 7
	OFPFW_DL_VLAN_PCP uint32 = 1 << 20
	OFPFW_NW_TOS      uint32 = 1 << 21
	OFPFW_ALL         uint32 = 1<<22 - 1
)

// The network address fields use 6 bit counts of wildcarded low bits
// instead of single flags.
const (
	OFPFW_NW_SRC_SHIFT = 8
	OFPFW_NW_DST_SHIFT = 14
)

// Wire action type codes.
const (
	OFPAT_OUTPUT  uint16 = 0
	OFPAT_ENQUEUE uint16 = 11
	OFPAT_VENDOR  uint16 = 0xFFFF
)

// Codec implements the byte codec for the 1.0 wire format.
type Codec struct{}

func NewCodec() Codec {
	return Codec{}
}

var (
	_ openflow.MatchCodec  = Codec{}
	_ openflow.ActionCodec = Codec{}
)

// prefixBits maps a CIDR prefix to the count of wildcarded low bits of
// the wire field. A nil prefix wildcards the whole address.
func prefixBits(n *net.IPNet) uint32 {
	if n == nil {
		return 32
	}
	ones, _ := n.Mask.Size()

	return uint32(32 - ones)
}

func putIPv4(b []byte, n *net.IPNet) {
	if n == nil {
		return
	}
	if ip := n.IP.To4(); ip != nil {
		copy(b, ip.Mask(n.Mask))
	}
}

// EncodeMatch packs a pattern into the fixed 40 byte ofp_match layout.
func (r Codec) EncodeMatch(m *flow.Match) ([]byte, error) {
	b := make([]byte, MatchLen)

	w := uint32(0)
	set := func(flag uint32, wc flow.Wildcards) bool {
		if m.Wildcards&wc != 0 {
			w |= flag
			return false
		}

		return true
	}
	if set(OFPFW_IN_PORT, flow.WildcardInPort) {
		binary.BigEndian.PutUint16(b[4:6], m.InPort)
	}
	if set(OFPFW_DL_SRC, flow.WildcardEthSrc) {
		copy(b[6:12], m.EthSrc)
	}
	if set(OFPFW_DL_DST, flow.WildcardEthDst) {
		copy(b[12:18], m.EthDst)
	}
	if set(OFPFW_DL_VLAN, flow.WildcardVLANID) {
		binary.BigEndian.PutUint16(b[18:20], m.VLANID)
	}
	if set(OFPFW_DL_VLAN_PCP, flow.WildcardVLANPCP) {
		b[20] = m.VLANPCP
	}
	if set(OFPFW_DL_TYPE, flow.WildcardEthType) {
		binary.BigEndian.PutUint16(b[22:24], m.EthType)
	}
	if set(OFPFW_NW_TOS, flow.WildcardIPTOS) {
		b[24] = m.IPTOS
	}
	if set(OFPFW_NW_PROTO, flow.WildcardIPProto) {
		b[25] = m.IPProto
	}
	if set(OFPFW_TP_SRC, flow.WildcardSrcPort) {
		binary.BigEndian.PutUint16(b[36:38], m.SrcPort)
	}
	if set(OFPFW_TP_DST, flow.WildcardDstPort) {
		binary.BigEndian.PutUint16(b[38:40], m.DstPort)
	}
	w |= prefixBits(m.IPSrc) << OFPFW_NW_SRC_SHIFT
	w |= prefixBits(m.IPDst) << OFPFW_NW_DST_SHIFT
	putIPv4(b[28:32], m.IPSrc)
	putIPv4(b[32:36], m.IPDst)
	binary.BigEndian.PutUint32(b[0:4], w)

	return b, nil
}

func decodeIPv4(b []byte, wildBits uint32) *net.IPNet {
	if wildBits >= 32 {
		return nil
	}
	ones := int(32 - wildBits)
	mask := net.CIDRMask(ones, 32)
	ip := net.IP(append([]byte(nil), b[:4]...)).Mask(mask)

	return &net.IPNet{IP: ip, Mask: mask}
}

// DecodeMatch unpacks a 40 byte ofp_match. Wildcarded fields are left
// zero so that equal wire patterns decode to equal patterns.
func (r Codec) DecodeMatch(b []byte) (*flow.Match, error) {
	if len(b) < MatchLen {
		return nil, errors.Errorf("match too short: %v bytes", len(b))
	}

	m := flow.NewMatch()
	w := binary.BigEndian.Uint32(b[0:4])
	get := func(flag uint32, wc flow.Wildcards) bool {
		if w&flag != 0 {
			return false
		}
		m.Wildcards &^= wc

		return true
	}
	if get(OFPFW_IN_PORT, flow.WildcardInPort) {
		m.InPort = binary.BigEndian.Uint16(b[4:6])
	}
	if get(OFPFW_DL_SRC, flow.WildcardEthSrc) {
		m.EthSrc = append(net.HardwareAddr(nil), b[6:12]...)
	}
	if get(OFPFW_DL_DST, flow.WildcardEthDst) {
		m.EthDst = append(net.HardwareAddr(nil), b[12:18]...)
	}
	if get(OFPFW_DL_VLAN, flow.WildcardVLANID) {
		m.VLANID = binary.BigEndian.Uint16(b[18:20])
	}
	if get(OFPFW_DL_VLAN_PCP, flow.WildcardVLANPCP) {
		m.VLANPCP = b[20]
	}
	if get(OFPFW_DL_TYPE, flow.WildcardEthType) {
		m.EthType = binary.BigEndian.Uint16(b[22:24])
	}
	if get(OFPFW_NW_TOS, flow.WildcardIPTOS) {
		m.IPTOS = b[24]
	}
	if get(OFPFW_NW_PROTO, flow.WildcardIPProto) {
		m.IPProto = b[25]
	}
	if get(OFPFW_TP_SRC, flow.WildcardSrcPort) {
		m.SrcPort = binary.BigEndian.Uint16(b[36:38])
	}
	if get(OFPFW_TP_DST, flow.WildcardDstPort) {
		m.DstPort = binary.BigEndian.Uint16(b[38:40])
	}
	m.IPSrc = decodeIPv4(b[28:32], w>>OFPFW_NW_SRC_SHIFT&0x3F)
	m.IPDst = decodeIPv4(b[32:36], w>>OFPFW_NW_DST_SHIFT&0x3F)

	return m, nil
}

// EncodeActions packs an action list into a sequence of wire action TLVs.
func (r Codec) EncodeActions(l openflow.ActionList) ([]byte, error) {
	b := make([]byte, 0, l.WireLen())
	for _, a := range l {
		switch act := a.(type) {
		case openflow.OutputAction:
			v := make([]byte, 8)
			binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
			binary.BigEndian.PutUint16(v[2:4], 8)
			binary.BigEndian.PutUint16(v[4:6], act.Port)
			binary.BigEndian.PutUint16(v[6:8], act.MaxLen)
			b = append(b, v...)
		case openflow.EnqueueAction:
			v := make([]byte, 16)
			binary.BigEndian.PutUint16(v[0:2], OFPAT_ENQUEUE)
			binary.BigEndian.PutUint16(v[2:4], 16)
			binary.BigEndian.PutUint16(v[4:6], act.Port)
			binary.BigEndian.PutUint32(v[12:16], act.QueueID)
			b = append(b, v...)
		case openflow.VendorAction:
			v := make([]byte, act.WireLen())
			binary.BigEndian.PutUint16(v[0:2], OFPAT_VENDOR)
			binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))
			binary.BigEndian.PutUint32(v[4:8], act.Vendor)
			copy(v[8:], act.Body)
			b = append(b, v...)
		case openflow.RawAction:
			v := make([]byte, act.WireLen())
			binary.BigEndian.PutUint16(v[0:2], act.Type)
			binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))
			copy(v[4:], act.Body)
			b = append(b, v...)
		default:
			return nil, errors.Errorf("unknown action type %T", a)
		}
	}

	return b, nil
}

// DecodeActions unpacks a sequence of wire action TLVs. Types the core
// does not interpret come back as opaque actions.
func (r Codec) DecodeActions(b []byte) (openflow.ActionList, error) {
	var l openflow.ActionList
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, errors.Errorf("action header too short: %v bytes", len(b))
		}
		typ := binary.BigEndian.Uint16(b[0:2])
		length := int(binary.BigEndian.Uint16(b[2:4]))
		if length < 4 || length%8 != 0 || length > len(b) {
			return nil, errors.Errorf("bad action length %v", length)
		}
		v := b[:length]
		switch typ {
		case OFPAT_OUTPUT:
			if length != 8 {
				return nil, errors.Errorf("bad output action length %v", length)
			}
			l = append(l, openflow.OutputAction{
				Port:   binary.BigEndian.Uint16(v[4:6]),
				MaxLen: binary.BigEndian.Uint16(v[6:8]),
			})
		case OFPAT_ENQUEUE:
			if length != 16 {
				return nil, errors.Errorf("bad enqueue action length %v", length)
			}
			l = append(l, openflow.EnqueueAction{
				Port:    binary.BigEndian.Uint16(v[4:6]),
				QueueID: binary.BigEndian.Uint32(v[12:16]),
			})
		case OFPAT_VENDOR:
			if length < 8 {
				return nil, errors.Errorf("bad vendor action length %v", length)
			}
			l = append(l, openflow.VendorAction{
				Vendor: binary.BigEndian.Uint32(v[4:8]),
				Body:   append([]byte(nil), v[8:]...),
			})
		default:
			l = append(l, openflow.RawAction{
				Type: typ,
				Body: append([]byte(nil), v[4:]...),
			})
		}
		b = b[length:]
	}

	return l, nil
}
