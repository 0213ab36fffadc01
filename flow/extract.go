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
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// Extract parses the headers of an Ethernet frame and returns the field
// values used for rule table lookup. Headers beyond the ones the match
// model knows about are ignored.
func Extract(data []byte, inPort uint16) (*Flow, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Lazy)
	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return nil, errors.New("not an Ethernet frame")
	}

	f := &Flow{
		InPort:  inPort,
		EthSrc:  eth.SrcMAC,
		EthDst:  eth.DstMAC,
		EthType: uint16(eth.EthernetType),
	}

	if vlan, ok := packet.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q); ok {
		f.VLANID = vlan.VLANIdentifier
		f.VLANPCP = vlan.Priority
		f.EthType = uint16(vlan.Type)
	}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		f.IPProto = uint8(ip.Protocol)
		f.IPTOS = ip.TOS
		f.IPSrc = ip.SrcIP
		f.IPDst = ip.DstIP
	case packet.Layer(layers.LayerTypeARP) != nil:
		arp := packet.Layer(layers.LayerTypeARP).(*layers.ARP)
		// The low bits of the ARP opcode stand in for the IP protocol,
		// which is how OpenFlow 1.0 matches on ARP operations.
		f.IPProto = uint8(arp.Operation & 0xFF)
		f.IPSrc = arp.SourceProtAddress
		f.IPDst = arp.DstProtAddress
	}

	if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		f.SrcPort = uint16(tcp.SrcPort)
		f.DstPort = uint16(tcp.DstPort)
	} else if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		f.SrcPort = uint16(udp.SrcPort)
		f.DstPort = uint16(udp.DstPort)
	} else if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		f.SrcPort = uint16(icmp.TypeCode.Type())
		f.DstPort = uint16(icmp.TypeCode.Code())
	}

	return f, nil
}
