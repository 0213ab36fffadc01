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
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/connmgr"
	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/netdev/memory"
	"github.com/yamahata/openvswitch/ofproto"
	"github.com/yamahata/openvswitch/openflow"
)

// capturingFactory keeps a reference to the last datapath it built so
// tests can reach behind the provider interface.
type capturingFactory struct {
	*Factory
	last *Datapath
}

func (r *capturingFactory) New(p *ofproto.OFProto) (ofproto.Provider, error) {
	v, err := r.Factory.New(p)
	if err == nil {
		r.last = v.(*Datapath)
	}

	return v, err
}

// newTestSwitch builds a switch over a userspace datapath with two
// ports, eth0 and eth1.
func newTestSwitch(t *testing.T) (*ofproto.OFProto, *Datapath, *memory.Registry) {
	t.Helper()
	devices := memory.NewRegistry()
	monitor := netdev.NewMonitor()
	devices.Watch(monitor)
	registry := ofproto.NewRegistry(devices)
	factory := &capturingFactory{Factory: NewFactory(devices)}
	registry.Register(factory)

	sw, err := registry.Open("br-dp", "userspace", monitor)
	if err != nil {
		t.Fatalf("failed to open the switch: %v", err)
	}
	for _, name := range []string{"eth0", "eth1"} {
		devices.Create(memory.DeviceConfig{Name: name})
		if _, err := sw.PortAdd(name, "system"); err != nil {
			t.Fatalf("failed to add %v: %v", name, err)
		}
	}
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	return sw, factory.last, devices
}

func testFrame() []byte {
	frame := make([]byte, 60)
	copy(frame, []byte{
		0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, // dst
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // src
		0x12, 0x34, // type
	})

	return frame
}

func portNumber(t *testing.T, sw *ofproto.OFProto, name string) uint16 {
	t.Helper()
	port := sw.PortByName(name)
	if port == nil {
		t.Fatalf("no port named %v", name)
	}

	return port.Number()
}

func installFlow(t *testing.T, sw *ofproto.OFProto, c *connmgr.Conn, m *openflow.FlowMod) {
	t.Helper()
	m.Command = openflow.OFPFC_ADD
	if m.BufferID == 0 {
		m.BufferID = openflow.NoBuffer
	}
	c.Send(m)
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	for _, reply := range c.TakeReplies() {
		if e, ok := reply.(*openflow.ErrorReply); ok {
			t.Fatalf("flow mod rejected: type=%v code=%v", e.Type, e.Code)
		}
	}
}

func matchInPort(port uint16) *flow.Match {
	m := flow.NewMatch()
	m.Wildcards &^= flow.WildcardInPort
	m.InPort = port

	return m
}

func TestForwardByRule(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	out := portNumber(t, sw, "eth1")
	installFlow(t, sw, c, &openflow.FlowMod{
		Match:    matchInPort(in),
		Priority: 10,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: out}},
	})

	if err := dp.InjectPacket(in, testFrame()); err != nil {
		t.Fatalf("unexpected inject error: %v", err)
	}
	sent := dp.TakeForwarded()
	if len(sent) != 1 || sent[0].Port != out {
		t.Fatalf("expected one packet out of port %v, got=%+v", out, sent)
	}

	rule := sw.Lookup(&flow.Flow{InPort: in})
	if rule == nil {
		t.Fatal("expected the rule to be found")
	}
	packets, bytes := rule.Stats()
	if packets != 1 || bytes != 60 {
		t.Fatalf("expected the rule credited with 1 packet / 60 bytes, got=%v/%v", packets, bytes)
	}
}

func TestMissSendsPacketIn(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	if err := dp.InjectPacket(in, testFrame()); err != nil {
		t.Fatalf("unexpected inject error: %v", err)
	}

	var pktIns []*openflow.PacketIn
	for _, m := range c.TakeReplies() {
		if p, ok := m.(*openflow.PacketIn); ok {
			pktIns = append(pktIns, p)
		}
	}
	if len(pktIns) != 1 {
		t.Fatalf("expected one packet-in, got=%v", len(pktIns))
	}
	if pktIns[0].Reason != openflow.OFPR_NO_MATCH || pktIns[0].InPort != in {
		t.Fatalf("unexpected packet-in: %+v", pktIns[0])
	}
	if len(dp.TakeForwarded()) != 0 {
		t.Fatal("a miss must not be forwarded")
	}
}

func TestControllerOutputHonorsMaxLen(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	installFlow(t, sw, c, &openflow.FlowMod{
		Match:    matchInPort(in),
		Priority: 10,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: openflow.OFPP_CONTROLLER, MaxLen: 16}},
	})

	if err := dp.InjectPacket(in, testFrame()); err != nil {
		t.Fatalf("unexpected inject error: %v", err)
	}

	var pktIns []*openflow.PacketIn
	for _, m := range c.TakeReplies() {
		if p, ok := m.(*openflow.PacketIn); ok {
			pktIns = append(pktIns, p)
		}
	}
	if len(pktIns) != 1 {
		t.Fatalf("expected one packet-in, got=%v", len(pktIns))
	}
	pi := pktIns[0]
	if pi.Reason != openflow.OFPR_ACTION {
		t.Fatalf("expected an action packet-in, got reason=%v", pi.Reason)
	}
	if len(pi.Data) != 16 || pi.TotalLen != 60 {
		t.Fatalf("expected 16 of 60 bytes sent up, got=%v of %v", len(pi.Data), pi.TotalLen)
	}
	if len(dp.TakeForwarded()) != 0 {
		t.Fatal("a controller output must not leave a data port")
	}
}

func TestFloodSkipsIngressPort(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	installFlow(t, sw, c, &openflow.FlowMod{
		Match:    matchInPort(in),
		Priority: 10,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: openflow.OFPP_FLOOD}},
	})

	if err := dp.InjectPacket(in, testFrame()); err != nil {
		t.Fatalf("unexpected inject error: %v", err)
	}
	for _, f := range dp.TakeForwarded() {
		if f.Port == in {
			t.Fatal("flood must not send back out of the ingress port")
		}
	}
}

func TestBadOutputPortRejected(t *testing.T) {
	sw, _, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	c.Send(&openflow.FlowMod{
		Command:  openflow.OFPFC_ADD,
		Match:    matchInPort(1),
		Priority: 10,
		BufferID: openflow.NoBuffer,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: openflow.OFPP_MAX + 1}},
	})
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	replies := c.TakeReplies()
	if len(replies) != 1 {
		t.Fatalf("expected one error reply, got=%v", len(replies))
	}
	e, ok := replies[0].(*openflow.ErrorReply)
	if !ok || e.Type != openflow.OFPET_BAD_ACTION || e.Code != openflow.OFPBAC_BAD_OUT_PORT {
		t.Fatalf("expected a bad-out-port error, got=%+v", replies[0])
	}
	if sw.RuleCount() != 0 {
		t.Fatal("the rejected rule must not be installed")
	}
}

func TestIdleTimeoutNotifies(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	installFlow(t, sw, c, &openflow.FlowMod{
		Match:       matchInPort(in),
		Priority:    10,
		IdleTimeout: 1,
		Flags:       openflow.OFPFF_SEND_FLOW_REM,
		Actions:     openflow.ActionList{openflow.OutputAction{Port: openflow.OFPP_CONTROLLER}},
	})

	// Backdate the last use past the idle timeout.
	if len(dp.rules) != 1 {
		t.Fatalf("expected one installed rule, got=%v", len(dp.rules))
	}
	for _, state := range dp.rules {
		state.lastUsed = time.Now().Add(-2 * time.Second)
	}

	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if sw.RuleCount() != 0 {
		t.Fatal("expected the rule expired")
	}

	var removed []*openflow.FlowRemoved
	for _, m := range c.TakeReplies() {
		if fr, ok := m.(*openflow.FlowRemoved); ok {
			removed = append(removed, fr)
		}
	}
	if len(removed) != 1 {
		t.Fatalf("expected one flow-removed, got=%v", len(removed))
	}
	if removed[0].Reason != openflow.OFPRR_IDLE_TIMEOUT {
		t.Fatalf("expected an idle-timeout reason, got=%v", removed[0].Reason)
	}
	if removed[0].Priority != 10 {
		t.Fatalf("expected priority 10, got=%v", removed[0].Priority)
	}
}

func TestPacketOutThroughDispatcher(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	out := portNumber(t, sw, "eth1")
	c.Send(&openflow.PacketOut{
		BufferID: openflow.NoBuffer,
		InPort:   in,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: out}},
		Data:     testFrame(),
	})
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	sent := dp.TakeForwarded()
	if len(sent) != 1 || sent[0].Port != out {
		t.Fatalf("expected one packet out of port %v, got=%+v", out, sent)
	}
}

func TestDatapathGone(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)

	dp.DestroyExternally()
	err := sw.Run()
	if err == nil {
		t.Fatal("expected an error after external destruction")
	}
	if errors.Cause(err) != ofproto.ErrDatapathGone {
		t.Fatalf("expected ErrDatapathGone, got=%v", err)
	}

	// The owner's reaction is to destroy the switch.
	sw.Destroy()
}

func TestPortStatsCountTraffic(t *testing.T) {
	sw, dp, _ := newTestSwitch(t)
	c := sw.Connmgr().Accept(true)

	in := portNumber(t, sw, "eth0")
	out := portNumber(t, sw, "eth1")
	installFlow(t, sw, c, &openflow.FlowMod{
		Match:    matchInPort(in),
		Priority: 10,
		Actions:  openflow.ActionList{openflow.OutputAction{Port: out}},
	})
	if err := dp.InjectPacket(in, testFrame()); err != nil {
		t.Fatalf("unexpected inject error: %v", err)
	}

	c.Send(&openflow.PortStatsRequest{PortNo: openflow.OFPP_NONE})
	if err := sw.Run(); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	var reply *openflow.PortStatsReply
	for _, m := range c.TakeReplies() {
		if ps, ok := m.(*openflow.PortStatsReply); ok {
			reply = ps
		}
	}
	if reply == nil {
		t.Fatal("expected a port stats reply")
	}
	stats := make(map[uint16]openflow.PortStats)
	for _, ps := range reply.Ports {
		stats[ps.PortNo] = ps
	}
	if stats[in].RxPackets != 1 {
		t.Fatalf("expected 1 rx packet on port %v, got=%v", in, stats[in].RxPackets)
	}
	if stats[out].TxPackets != 1 {
		t.Fatalf("expected 1 tx packet on port %v, got=%v", out, stats[out].TxPackets)
	}
}
