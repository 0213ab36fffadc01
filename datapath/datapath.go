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

// Package datapath implements the userspace forwarding provider: rules
// and ports live entirely in process memory, and forwarded packets are
// recorded for the owner to drain. It is the reference backend for the
// ofproto core and the one used by the daemon unless another provider
// is registered.
package datapath

import (
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/ofproto"
	"github.com/yamahata/openvswitch/openflow"
)

var logger = logging.MustGetLogger("datapath")

// changeQueueLimit bounds the pending port change queue; past it the
// queue degrades to a full-rescan signal.
const changeQueueLimit = 64

// Factory builds userspace datapaths over a device registry.
type Factory struct {
	devices netdev.Opener
}

func NewFactory(devices netdev.Opener) *Factory {
	return &Factory{devices: devices}
}

func (r *Factory) Type() string {
	return "userspace"
}

func (r *Factory) New(p *ofproto.OFProto) (ofproto.Provider, error) {
	dp := &Datapath{
		ofproto:  p,
		devices:  r.devices,
		ports:    make(map[uint16]ofproto.PortRecord),
		rules:    make(map[*ofproto.Rule]*ruleState),
		counters: make(map[uint16]*openflow.PortStats),
		queues:   make(map[uint16]map[uint32]*openflow.QueueStats),
		cfm:      make(map[uint16]*ofproto.CFMSettings),
		bundles:  make(map[interface{}]*ofproto.BundleSettings),
		mirrors:  make(map[interface{}]*ofproto.MirrorSettings),
	}
	// A device named after the switch itself becomes the local port.
	if r.devices.Exists(p.Name()) {
		dp.ports[openflow.OFPP_LOCAL] = ofproto.PortRecord{
			Name:   p.Name(),
			Type:   "internal",
			Number: openflow.OFPP_LOCAL,
		}
	}

	return dp, nil
}

// Forwarded is one packet the datapath pushed out of a port.
type Forwarded struct {
	Port uint16
	Data []byte
}

// Datapath is one userspace forwarding instance. Like the core that
// owns it, it expects a single mutator goroutine.
type Datapath struct {
	ofproto *ofproto.OFProto
	devices netdev.Opener

	ports    map[uint16]ofproto.PortRecord
	changes  []string
	overflow bool

	rules    map[*ofproto.Rule]*ruleState
	counters map[uint16]*openflow.PortStats
	queues   map[uint16]map[uint32]*openflow.QueueStats
	sent     []Forwarded

	gone      bool
	dropFrags bool

	netflow    *ofproto.NetFlowSettings
	sflow      *ofproto.SFlowSettings
	cfm        map[uint16]*ofproto.CFMSettings
	bundles    map[interface{}]*ofproto.BundleSettings
	mirrors    map[interface{}]*ofproto.MirrorSettings
	floodVLANs []uint16
}

type ruleState struct {
	packets  uint64
	bytes    uint64
	lastUsed time.Time
	removed  bool
}

// DestroyExternally simulates the forwarding resource disappearing
// behind the switch's back; every subsequent operation fails with
// ErrDatapathGone until the owner tears the switch down.
func (r *Datapath) DestroyExternally() {
	r.gone = true
}

// TakeForwarded drains the packets forwarded since the last call, in
// order.
func (r *Datapath) TakeForwarded() []Forwarded {
	sent := r.sent
	r.sent = nil

	return sent
}

// Run expires timed-out rules. Expiry runs through the core so that
// flow-removed notifications fire.
func (r *Datapath) Run() error {
	if r.gone {
		return ofproto.ErrDatapathGone
	}

	now := time.Now()
	expired := make(map[*ofproto.Rule]openflow.RemovedReason)
	for rule, state := range r.rules {
		if state.removed {
			continue
		}
		if d := rule.HardTimeout(); d > 0 && now.Sub(rule.Created()) >= d {
			expired[rule] = openflow.OFPRR_HARD_TIMEOUT
			continue
		}
		if d := rule.IdleTimeout(); d > 0 && now.Sub(state.lastUsed) >= d {
			expired[rule] = openflow.OFPRR_IDLE_TIMEOUT
		}
	}
	for rule, reason := range expired {
		r.ofproto.ExpireRule(rule, reason)
	}

	return nil
}

func (r *Datapath) Wait() {
	// Nothing blocks in memory; the owner polls.
}

func (r *Datapath) Flush() error {
	for _, state := range r.rules {
		state.removed = true
	}
	r.rules = make(map[*ofproto.Rule]*ruleState)

	return nil
}

func (r *Datapath) Destruct() {
	r.rules = make(map[*ofproto.Rule]*ruleState)
	r.ports = make(map[uint16]ofproto.PortRecord)
}

func (r *Datapath) GetDropFrags() bool {
	return r.dropFrags
}

func (r *Datapath) SetDropFrags(drop bool) {
	r.dropFrags = drop
}

func (r *Datapath) SetNetFlow(s *ofproto.NetFlowSettings) error {
	r.netflow = s
	return nil
}

func (r *Datapath) NetFlowIDs() (engineType, engineID uint8) {
	if r.netflow == nil {
		return 0, 0
	}

	return r.netflow.EngineType, r.netflow.EngineID
}

func (r *Datapath) SetSFlow(s *ofproto.SFlowSettings) error {
	r.sflow = s
	return nil
}

func (r *Datapath) SetCFM(port *ofproto.Port, s *ofproto.CFMSettings) error {
	if s == nil {
		delete(r.cfm, port.Number())
		return nil
	}
	r.cfm[port.Number()] = s

	return nil
}

func (r *Datapath) BundleSet(aux interface{}, s *ofproto.BundleSettings) error {
	if s == nil {
		delete(r.bundles, aux)
		return nil
	}
	r.bundles[aux] = s

	return nil
}

func (r *Datapath) BundleRemove(port *ofproto.Port) {
	for aux, bundle := range r.bundles {
		kept := bundle.Ports[:0]
		for _, n := range bundle.Ports {
			if n != port.Number() {
				kept = append(kept, n)
			}
		}
		bundle.Ports = kept
		if len(kept) == 0 {
			delete(r.bundles, aux)
		}
	}
}

func (r *Datapath) MirrorSet(aux interface{}, s *ofproto.MirrorSettings) error {
	if s == nil {
		delete(r.mirrors, aux)
		return nil
	}
	r.mirrors[aux] = s

	return nil
}

func (r *Datapath) IsMirrorOutputBundle(aux interface{}) bool {
	bundle := r.bundles[aux]
	if bundle == nil {
		return false
	}
	for _, mirror := range r.mirrors {
		for _, n := range bundle.Ports {
			if mirror.OutputPort == n {
				return true
			}
		}
	}

	return false
}

func (r *Datapath) SetFloodVLANs(vlans []uint16) error {
	r.floodVLANs = vlans
	return nil
}

func (r *Datapath) NewPort(port *ofproto.Port) (ofproto.PortBackend, error) {
	if r.counters[port.Number()] == nil {
		r.counters[port.Number()] = &openflow.PortStats{PortNo: port.Number()}
	}

	return &portBackend{dp: r, port: port}, nil
}

// PortAdd attaches a device under the lowest free port number.
func (r *Datapath) PortAdd(dev netdev.Netdev) (uint16, error) {
	if r.gone {
		return 0, ofproto.ErrDatapathGone
	}
	for _, rec := range r.ports {
		if rec.Name == dev.Name() {
			return 0, errors.Errorf("device %v is already attached", dev.Name())
		}
	}

	number := uint16(1)
	for r.ports[number].Name != "" {
		number++
		if number >= openflow.OFPP_MAX {
			return 0, errors.New("out of port numbers")
		}
	}
	r.ports[number] = ofproto.PortRecord{Name: dev.Name(), Type: dev.Type(), Number: number}
	r.notifyPortChange(dev.Name())

	return number, nil
}

func (r *Datapath) PortDel(number uint16) error {
	if r.gone {
		return ofproto.ErrDatapathGone
	}
	rec, ok := r.ports[number]
	if !ok {
		return errors.Wrapf(netdev.ErrNoDevice, "port %v", number)
	}
	delete(r.ports, number)
	r.notifyPortChange(rec.Name)

	return nil
}

func (r *Datapath) PortQueryByName(name string) (ofproto.PortRecord, error) {
	if r.gone {
		return ofproto.PortRecord{}, ofproto.ErrDatapathGone
	}
	for _, rec := range r.ports {
		if rec.Name == name {
			return rec, nil
		}
	}

	return ofproto.PortRecord{}, errors.Wrapf(netdev.ErrNoDevice, "port %v", name)
}

func (r *Datapath) PortDump() ([]ofproto.PortRecord, error) {
	if r.gone {
		return nil, ofproto.ErrDatapathGone
	}
	out := make([]ofproto.PortRecord, 0, len(r.ports))
	for _, rec := range r.ports {
		out = append(out, rec)
	}

	return out, nil
}

func (r *Datapath) notifyPortChange(name string) {
	if r.overflow {
		return
	}
	if len(r.changes) >= changeQueueLimit {
		r.overflow = true
		r.changes = nil
		return
	}
	r.changes = append(r.changes, name)
}

func (r *Datapath) PortPoll() (string, error) {
	if r.overflow {
		r.overflow = false
		return "", netdev.ErrOverflow
	}
	if len(r.changes) == 0 {
		return "", ofproto.ErrAgain
	}
	name := r.changes[0]
	r.changes = r.changes[1:]

	return name, nil
}

func (r *Datapath) PortPollWait() {
}

// ConfigureQueue provisions a transmit queue on a port. Queues only
// exist when provisioned; enqueue actions to other queues fall back to
// plain output.
func (r *Datapath) ConfigureQueue(portNo uint16, queueID uint32) {
	if r.queues[portNo] == nil {
		r.queues[portNo] = make(map[uint32]*openflow.QueueStats)
	}
	if r.queues[portNo][queueID] == nil {
		r.queues[portNo][queueID] = &openflow.QueueStats{PortNo: portNo, QueueID: queueID}
	}
}

func (r *Datapath) QueueStats(port *ofproto.Port, queueID uint32) ([]openflow.QueueStats, error) {
	queues := r.queues[port.Number()]
	if queueID != openflow.QueueAll {
		q := queues[queueID]
		if q == nil {
			return nil, errors.Errorf("port %v has no queue %v", port.Number(), queueID)
		}
		return []openflow.QueueStats{*q}, nil
	}

	out := make([]openflow.QueueStats, 0, len(queues))
	for _, q := range queues {
		out = append(out, *q)
	}

	return out, nil
}

func (r *Datapath) PortStats(port *ofproto.Port) (openflow.PortStats, error) {
	c := r.counters[port.Number()]
	if c == nil {
		return openflow.PortStats{}, errors.Wrapf(netdev.ErrNoDevice, "port %v", port.Number())
	}

	return *c, nil
}

func (r *Datapath) NewRule(rule *ofproto.Rule) (ofproto.RuleBackend, error) {
	if r.gone {
		return nil, ofproto.ErrDatapathGone
	}
	if err := r.validateActions(rule.Actions()); err != nil {
		return nil, err
	}
	state := &ruleState{lastUsed: time.Now()}
	r.rules[rule] = state

	return &ruleBackend{dp: r, rule: rule, state: state}, nil
}

// PacketOut executes a free-standing action list against one packet
// without crediting any rule.
func (r *Datapath) PacketOut(packet []byte, f *flow.Flow, actions openflow.ActionList) error {
	if r.gone {
		return ofproto.ErrDatapathGone
	}
	if err := r.validateActions(actions); err != nil {
		return err
	}
	r.execute(f, packet, actions, 0)

	return nil
}

// InjectPacket is the receive path: the packet is looked up in the
// switch's table, and a miss goes to the controllers as a packet-in.
func (r *Datapath) InjectPacket(portNo uint16, data []byte) error {
	if r.gone {
		return ofproto.ErrDatapathGone
	}
	if c := r.counters[portNo]; c != nil {
		c.RxPackets++
		c.RxBytes += uint64(len(data))
	}

	f, err := flow.Extract(data, portNo)
	if err != nil {
		return errors.Wrap(err, "extracting received packet")
	}
	rule := r.ofproto.Lookup(f)
	if rule == nil {
		r.ofproto.Connmgr().SendPacketIn(portNo, openflow.OFPR_NO_MATCH, data, 0)
		return nil
	}

	return rule.Execute(portNo, data)
}

type portBackend struct {
	dp   *Datapath
	port *ofproto.Port
}

func (r *portBackend) Destruct() {
}

func (r *portBackend) Modified() {
}

func (r *portBackend) Reconfigured(oldConfig uint32) {
	logger.Debugf("port %v reconfigured: %#x -> %#x", r.port.Name(), oldConfig, r.port.Desc().Config)
}

func (r *portBackend) IsLACPCurrent() bool {
	return false
}

type ruleBackend struct {
	dp    *Datapath
	rule  *ofproto.Rule
	state *ruleState
}

func (r *ruleBackend) Destruct() {
}

func (r *ruleBackend) Remove() {
	if r.state.removed {
		return
	}
	r.state.removed = true
	delete(r.dp.rules, r.rule)
}

func (r *ruleBackend) Stats() (packets, bytes uint64) {
	return r.state.packets, r.state.bytes
}

func (r *ruleBackend) Execute(f *flow.Flow, packet []byte) error {
	if r.dp.gone {
		return ofproto.ErrDatapathGone
	}
	r.state.packets++
	r.state.bytes += uint64(len(packet))
	r.state.lastUsed = time.Now()
	r.dp.execute(f, packet, r.rule.Actions(), 0)

	return nil
}

func (r *ruleBackend) ModifyActions(actions openflow.ActionList) error {
	return r.dp.validateActions(actions)
}
