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

package datapath

import (
	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/openflow"
)

// maxResubmits bounds OFPP_TABLE re-entry so that a rule outputting to
// the table cannot loop forever.
const maxResubmits = 8

// validateActions rejects action lists this backend cannot carry out.
// Rejection is a typed protocol error, surfaced to the requesting
// controller unchanged.
func (r *Datapath) validateActions(actions openflow.ActionList) error {
	for _, a := range actions {
		switch act := a.(type) {
		case openflow.OutputAction:
			if err := r.validateOutputPort(act.Port); err != nil {
				return err
			}
		case openflow.EnqueueAction:
			if act.Port > openflow.OFPP_MAX && act.Port != openflow.OFPP_IN_PORT &&
				act.Port != openflow.OFPP_LOCAL {
				return openflow.NewError(openflow.OFPET_BAD_ACTION, openflow.OFPBAC_BAD_OUT_PORT)
			}
		case openflow.VendorAction:
			return openflow.NewError(openflow.OFPET_BAD_ACTION, openflow.OFPBAC_BAD_VENDOR)
		case openflow.RawAction:
			return openflow.NewError(openflow.OFPET_BAD_ACTION, openflow.OFPBAC_BAD_TYPE)
		}
	}

	return nil
}

func (r *Datapath) validateOutputPort(port uint16) error {
	switch port {
	case openflow.OFPP_IN_PORT, openflow.OFPP_TABLE, openflow.OFPP_NORMAL,
		openflow.OFPP_FLOOD, openflow.OFPP_ALL, openflow.OFPP_CONTROLLER,
		openflow.OFPP_LOCAL:
		return nil
	default:
		if port <= openflow.OFPP_MAX {
			return nil
		}
		return openflow.NewError(openflow.OFPET_BAD_ACTION, openflow.OFPBAC_BAD_OUT_PORT)
	}
}

// execute runs a validated action list against one packet.
func (r *Datapath) execute(f *flow.Flow, packet []byte, actions openflow.ActionList, depth int) {
	for _, a := range actions {
		switch act := a.(type) {
		case openflow.OutputAction:
			r.output(f, packet, act, depth)
		case openflow.EnqueueAction:
			r.enqueue(f, packet, act)
		}
	}
}

func (r *Datapath) output(f *flow.Flow, packet []byte, act openflow.OutputAction, depth int) {
	switch act.Port {
	case openflow.OFPP_IN_PORT:
		r.transmit(f.InPort, packet)
	case openflow.OFPP_TABLE:
		r.resubmit(f, packet, depth)
	case openflow.OFPP_NORMAL, openflow.OFPP_FLOOD:
		r.flood(f, packet, false)
	case openflow.OFPP_ALL:
		r.flood(f, packet, true)
	case openflow.OFPP_CONTROLLER:
		// The action's max_len caps how much of the packet goes up.
		r.ofproto.Connmgr().SendPacketIn(f.InPort, openflow.OFPR_ACTION, packet, act.MaxLen)
	case openflow.OFPP_NONE:
	default:
		r.transmit(act.Port, packet)
	}
}

// resubmit runs the packet through the rule table again, crediting the
// matched rule's counters directly rather than re-entering the core.
func (r *Datapath) resubmit(f *flow.Flow, packet []byte, depth int) {
	if depth >= maxResubmits {
		logger.Warningf("dropping packet: too many table resubmits (in port %v)", f.InPort)
		return
	}
	rule := r.ofproto.Lookup(f)
	if rule == nil {
		r.ofproto.Connmgr().SendPacketIn(f.InPort, openflow.OFPR_NO_MATCH, packet, 0)
		return
	}
	if state := r.rules[rule]; state != nil {
		state.packets++
		state.bytes += uint64(len(packet))
	}
	r.execute(f, packet, rule.Actions(), depth+1)
}

// flood sends the packet out of every eligible port except the one it
// came in on. all ignores the per-port no-flood configuration bit and
// the flood VLAN restriction.
func (r *Datapath) flood(f *flow.Flow, packet []byte, all bool) {
	if !all && !r.mayFlood(f.VLANID) {
		return
	}
	for _, port := range r.ofproto.Ports() {
		if port.Number() == f.InPort {
			continue
		}
		if !all && port.Desc().Config&openflow.OFPPC_NO_FLOOD != 0 {
			continue
		}
		r.transmit(port.Number(), packet)
	}
}

// mayFlood reports whether flooding is allowed for a VLAN. An empty
// restriction list allows every VLAN.
func (r *Datapath) mayFlood(vlan uint16) bool {
	if len(r.floodVLANs) == 0 {
		return true
	}
	for _, v := range r.floodVLANs {
		if v == vlan {
			return true
		}
	}

	return false
}

func (r *Datapath) enqueue(f *flow.Flow, packet []byte, act openflow.EnqueueAction) {
	port := act.Port
	if port == openflow.OFPP_IN_PORT {
		port = f.InPort
	}
	if q := r.queues[port][act.QueueID]; q != nil {
		q.TxPackets++
		q.TxBytes += uint64(len(packet))
	}
	r.transmit(port, packet)
}

// transmit pushes the packet out of one port, honoring its down and
// no-forward configuration.
func (r *Datapath) transmit(portNo uint16, packet []byte) {
	port := r.ofproto.Port(portNo)
	if port == nil {
		return
	}
	desc := port.Desc()
	if desc.Config&(openflow.OFPPC_PORT_DOWN|openflow.OFPPC_NO_FWD) != 0 {
		if c := r.counters[portNo]; c != nil {
			c.TxDropped++
		}
		return
	}
	if c := r.counters[portNo]; c != nil {
		c.TxPackets++
		c.TxBytes += uint64(len(packet))
	}
	r.sent = append(r.sent, Forwarded{Port: portNo, Data: packet})
}
