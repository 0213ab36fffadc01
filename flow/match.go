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

package flow

import (
	"bytes"
	"fmt"
	"net"
	"strings"
)

// Wildcards is a bit set marking which match fields accept any value.
type Wildcards uint32

const (
	WildcardInPort Wildcards = 1 << iota
	WildcardEthSrc
	WildcardEthDst
	WildcardEthType
	WildcardVLANID
	WildcardVLANPCP
	WildcardIPProto
	WildcardIPTOS
	WildcardSrcPort
	WildcardDstPort

	// WildcardAll covers every field above. The IP source and destination
	// prefixes are wildcarded by a nil IPNet instead of a bit.
	WildcardAll = WildcardInPort | WildcardEthSrc | WildcardEthDst |
		WildcardEthType | WildcardVLANID | WildcardVLANPCP |
		WildcardIPProto | WildcardIPTOS | WildcardSrcPort | WildcardDstPort
)

// Match is a predicate over packet header fields. Each field is either
// wildcarded or constrained to an exact value; the IP source and destination
// fields are constrained to a CIDR prefix. The zero Match produced by
// NewMatch matches every packet.
type Match struct {
	Wildcards Wildcards
	InPort    uint16
	EthSrc    net.HardwareAddr
	EthDst    net.HardwareAddr
	EthType   uint16
	VLANID    uint16
	VLANPCP   uint8
	IPProto   uint8
	IPTOS     uint8
	// IPSrc and IPDst are nil when wildcarded.
	IPSrc   *net.IPNet
	IPDst   *net.IPNet
	SrcPort uint16
	DstPort uint16
}

// NewMatch returns a match with every field wildcarded.
func NewMatch() *Match {
	return &Match{Wildcards: WildcardAll}
}

func (r *Match) wildcarded(w Wildcards) bool {
	return r.Wildcards&w != 0
}

// MatchesFlow reports whether the packet field values in f satisfy every
// constrained field of this match.
func (r *Match) MatchesFlow(f *Flow) bool {
	if !r.wildcarded(WildcardInPort) && r.InPort != f.InPort {
		return false
	}
	if !r.wildcarded(WildcardEthSrc) && !bytes.Equal(r.EthSrc, f.EthSrc) {
		return false
	}
	if !r.wildcarded(WildcardEthDst) && !bytes.Equal(r.EthDst, f.EthDst) {
		return false
	}
	if !r.wildcarded(WildcardEthType) && r.EthType != f.EthType {
		return false
	}
	if !r.wildcarded(WildcardVLANID) && r.VLANID != f.VLANID {
		return false
	}
	if !r.wildcarded(WildcardVLANPCP) && r.VLANPCP != f.VLANPCP {
		return false
	}
	if !r.wildcarded(WildcardIPProto) && r.IPProto != f.IPProto {
		return false
	}
	if !r.wildcarded(WildcardIPTOS) && r.IPTOS != f.IPTOS {
		return false
	}
	if r.IPSrc != nil && (f.IPSrc == nil || !r.IPSrc.Contains(f.IPSrc)) {
		return false
	}
	if r.IPDst != nil && (f.IPDst == nil || !r.IPDst.Contains(f.IPDst)) {
		return false
	}
	if !r.wildcarded(WildcardSrcPort) && r.SrcPort != f.SrcPort {
		return false
	}
	if !r.wildcarded(WildcardDstPort) && r.DstPort != f.DstPort {
		return false
	}

	return true
}

// Covers reports whether every packet matched by m is also matched by this
// match, i.e. this match is equal to or more general than m. It implements
// the loose-match criteria used by pattern-based modify, delete and stats
// queries: a query pattern q selects a rule r when q.Covers(r.Match).
func (r *Match) Covers(m *Match) bool {
	type field struct {
		w           Wildcards
		eq          bool
		mConstrains bool
	}
	fields := []field{
		{WildcardInPort, r.InPort == m.InPort, !m.wildcarded(WildcardInPort)},
		{WildcardEthSrc, bytes.Equal(r.EthSrc, m.EthSrc), !m.wildcarded(WildcardEthSrc)},
		{WildcardEthDst, bytes.Equal(r.EthDst, m.EthDst), !m.wildcarded(WildcardEthDst)},
		{WildcardEthType, r.EthType == m.EthType, !m.wildcarded(WildcardEthType)},
		{WildcardVLANID, r.VLANID == m.VLANID, !m.wildcarded(WildcardVLANID)},
		{WildcardVLANPCP, r.VLANPCP == m.VLANPCP, !m.wildcarded(WildcardVLANPCP)},
		{WildcardIPProto, r.IPProto == m.IPProto, !m.wildcarded(WildcardIPProto)},
		{WildcardIPTOS, r.IPTOS == m.IPTOS, !m.wildcarded(WildcardIPTOS)},
		{WildcardSrcPort, r.SrcPort == m.SrcPort, !m.wildcarded(WildcardSrcPort)},
		{WildcardDstPort, r.DstPort == m.DstPort, !m.wildcarded(WildcardDstPort)},
	}
	for _, f := range fields {
		if r.wildcarded(f.w) {
			continue
		}
		// This match constrains the field: m must constrain it to the
		// same value.
		if !f.mConstrains || !f.eq {
			return false
		}
	}
	if !prefixCovers(r.IPSrc, m.IPSrc) || !prefixCovers(r.IPDst, m.IPDst) {
		return false
	}

	return true
}

// prefixCovers reports whether prefix a contains prefix b. A nil prefix
// matches everything.
func prefixCovers(a, b *net.IPNet) bool {
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	aOnes, _ := a.Mask.Size()
	bOnes, _ := b.Mask.Size()
	return bOnes >= aOnes && a.Contains(b.IP)
}

// Overlaps reports whether at least one packet can match both patterns.
func (r *Match) Overlaps(m *Match) bool {
	type field struct {
		w  Wildcards
		eq bool
	}
	fields := []field{
		{WildcardInPort, r.InPort == m.InPort},
		{WildcardEthSrc, bytes.Equal(r.EthSrc, m.EthSrc)},
		{WildcardEthDst, bytes.Equal(r.EthDst, m.EthDst)},
		{WildcardEthType, r.EthType == m.EthType},
		{WildcardVLANID, r.VLANID == m.VLANID},
		{WildcardVLANPCP, r.VLANPCP == m.VLANPCP},
		{WildcardIPProto, r.IPProto == m.IPProto},
		{WildcardIPTOS, r.IPTOS == m.IPTOS},
		{WildcardSrcPort, r.SrcPort == m.SrcPort},
		{WildcardDstPort, r.DstPort == m.DstPort},
	}
	for _, f := range fields {
		if r.wildcarded(f.w) || m.wildcarded(f.w) {
			continue
		}
		if !f.eq {
			return false
		}
	}

	return prefixOverlaps(r.IPSrc, m.IPSrc) && prefixOverlaps(r.IPDst, m.IPDst)
}

func prefixOverlaps(a, b *net.IPNet) bool {
	if a == nil || b == nil {
		return true
	}
	aOnes, _ := a.Mask.Size()
	bOnes, _ := b.Mask.Size()
	if aOnes <= bOnes {
		return a.Contains(b.IP)
	}
	return b.Contains(a.IP)
}

// Equal reports whether two patterns constrain exactly the same fields to
// exactly the same values. Together with the priority this is the rule
// table key equality.
func (r *Match) Equal(m *Match) bool {
	if r.Wildcards != m.Wildcards {
		return false
	}
	return r.Covers(m) && m.Covers(r) && prefixEqual(r.IPSrc, m.IPSrc) && prefixEqual(r.IPDst, m.IPDst)
}

func prefixEqual(a, b *net.IPNet) bool {
	if a == nil || b == nil {
		return a == b
	}
	aOnes, _ := a.Mask.Size()
	bOnes, _ := b.Mask.Size()
	return aOnes == bOnes && a.IP.Equal(b.IP)
}

// Key returns a canonical string form of the pattern, stable across
// equal patterns, for use as a map key.
func (r *Match) Key() string {
	var b strings.Builder
	put := func(w Wildcards, format string, v interface{}) {
		if r.wildcarded(w) {
			b.WriteString("*,")
			return
		}
		fmt.Fprintf(&b, format+",", v)
	}
	put(WildcardInPort, "%d", r.InPort)
	put(WildcardEthSrc, "%v", r.EthSrc)
	put(WildcardEthDst, "%v", r.EthDst)
	put(WildcardEthType, "%#x", r.EthType)
	put(WildcardVLANID, "%d", r.VLANID)
	put(WildcardVLANPCP, "%d", r.VLANPCP)
	put(WildcardIPProto, "%d", r.IPProto)
	put(WildcardIPTOS, "%d", r.IPTOS)
	put(WildcardSrcPort, "%d", r.SrcPort)
	put(WildcardDstPort, "%d", r.DstPort)
	for _, n := range []*net.IPNet{r.IPSrc, r.IPDst} {
		if n == nil {
			b.WriteString("*,")
			continue
		}
		ones, _ := n.Mask.Size()
		fmt.Fprintf(&b, "%v/%d,", n.IP.Mask(n.Mask), ones)
	}

	return b.String()
}

func (r *Match) String() string {
	return r.Key()
}

// Clone returns a deep copy so that a rule owns its pattern exclusively.
func (r *Match) Clone() *Match {
	c := *r
	if r.EthSrc != nil {
		c.EthSrc = append(net.HardwareAddr(nil), r.EthSrc...)
	}
	if r.EthDst != nil {
		c.EthDst = append(net.HardwareAddr(nil), r.EthDst...)
	}
	if r.IPSrc != nil {
		c.IPSrc = &net.IPNet{IP: append(net.IP(nil), r.IPSrc.IP...), Mask: append(net.IPMask(nil), r.IPSrc.Mask...)}
	}
	if r.IPDst != nil {
		c.IPDst = &net.IPNet{IP: append(net.IP(nil), r.IPDst.IP...), Mask: append(net.IPMask(nil), r.IPDst.Mask...)}
	}

	return &c
}
