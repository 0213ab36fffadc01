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

// Package ofproto implements the OpenFlow-facing core of a software
// switch: the classifier table, rule and port lifecycles, and the
// request dispatcher. Forwarding itself is delegated to a pluggable
// provider registered by type name.
package ofproto

import (
	"crypto/rand"
	"net"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/connmgr"
	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/openflow"
)

var logger = logging.MustGetLogger("ofproto")

// Descriptions are the strings reported in an OFPST_DESC reply.
type Descriptions struct {
	Manufacturer string
	Hardware     string
	Software     string
	SerialNumber string
	Datapath     string
}

// OFProto is one switch instance. All methods must be called from a
// single goroutine; the provider is driven from the same goroutine via
// Run.
type OFProto struct {
	registry     *Registry
	name         string
	providerType string
	provider     Provider

	datapathID   uint64
	fallbackDPID uint64
	descriptions Descriptions

	table      *Table
	ports      map[uint16]*Port
	portByName map[string]*Port

	netdevs    netdev.Opener
	devMonitor *netdev.Monitor
	connmgr    *connmgr.Manager

	destroyed bool
}

func (p *OFProto) Name() string {
	return p.name
}

func (p *OFProto) Type() string {
	return p.providerType
}

func (p *OFProto) DatapathID() uint64 {
	return p.datapathID
}

func (p *OFProto) Connmgr() *connmgr.Manager {
	return p.connmgr
}

func (p *OFProto) Descriptions() Descriptions {
	return p.descriptions
}

func (p *OFProto) SetDescriptions(d Descriptions) {
	p.descriptions = d
}

// RuleCount returns the number of rules in the classifier, hidden rules
// included.
func (p *OFProto) RuleCount() int {
	return p.table.Count()
}

// SetDatapathID overrides the datapath ID. Passing zero reverts to the
// derived ID (local port MAC, or the random fallback).
func (p *OFProto) SetDatapathID(dpid uint64) {
	if dpid == 0 {
		dpid = p.pickDatapathID()
	}
	p.datapathID = dpid
}

// pickDatapathID derives the datapath ID from the local port's MAC
// address, falling back to a random but stable per-instance ID when no
// local port exists.
func (p *OFProto) pickDatapathID() uint64 {
	if port := p.ports[openflow.OFPP_LOCAL]; port != nil {
		if hwAddr, err := port.dev.HardwareAddr(); err == nil && len(hwAddr) == 6 {
			return macToDatapathID(hwAddr)
		}
	}

	return p.fallbackDPID
}

func macToDatapathID(mac net.HardwareAddr) uint64 {
	var v uint64
	for _, b := range mac {
		v = v<<8 | uint64(b)
	}

	return v
}

// pickFallbackDPID generates a random locally-administered unicast MAC
// and folds it into a datapath ID.
func pickFallbackDPID() uint64 {
	mac := make(net.HardwareAddr, 6)
	if _, err := rand.Read(mac); err != nil {
		// Degenerate but still usable.
		copy(mac, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	}
	mac[0] &^= 0x01 // unicast
	mac[0] |= 0x02  // locally administered

	return macToDatapathID(mac)
}

// Run performs one round of switch housekeeping: it drives the
// provider, reconciles port changes, and dispatches pending controller
// requests. It returns ErrDatapathGone when the underlying datapath has
// been destroyed behind our back; the switch must then be destroyed.
func (p *OFProto) Run() error {
	if err := p.provider.Run(); err != nil {
		if errors.Cause(err) == ErrDatapathGone {
			logger.Errorf("%v: datapath was destroyed externally", p.name)
			return err
		}
		return errors.Wrap(err, "running forwarding provider")
	}

	p.pollDatapathPorts()
	p.pollDevices()
	p.connmgr.Run(p.handleMessage)

	return nil
}

// pollDatapathPorts drains the provider's port change feed.
func (p *OFProto) pollDatapathPorts() {
	for {
		name, err := p.provider.PortPoll()
		switch err {
		case nil:
			p.updatePort(name)
		case ErrAgain:
			return
		default:
			// The feed lost changes; rescan everything.
			p.reinitPorts()
			return
		}
	}
}

// pollDevices drains device-level change notifications (carrier, MAC,
// flags) for devices already in the registry.
func (p *OFProto) pollDevices() {
	if p.devMonitor == nil {
		return
	}
	for {
		name, err := p.devMonitor.Poll()
		switch err {
		case nil:
			if p.portByName[name] != nil {
				p.updatePort(name)
			}
		case netdev.ErrAgain:
			return
		default:
			p.reinitPorts()
			return
		}
	}
}

// Wait blocks until something the provider knows about needs attention.
func (p *OFProto) Wait() {
	p.provider.Wait()
}

// Flush removes every rule, including hidden ones, without sending
// flow-removed notifications.
func (p *OFProto) Flush() {
	p.provider.Flush()
	cursor := p.table.Query(nil)
	for {
		rule := cursor.Next()
		if rule == nil {
			break
		}
		p.destroyRule(rule)
	}
}

// Destroy tears down the switch: all rules and ports are destroyed, the
// provider is destructed, and the instance is removed from its
// registry. No notifications are sent; the connection manager is going
// away with the switch.
func (p *OFProto) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true

	for _, port := range p.Ports() {
		p.portDestroy(port)
	}
	p.Flush()
	p.provider.Destruct()
	if p.registry != nil {
		p.registry.remove(p.name)
	}
}

// PortAdd attaches a device to the datapath and returns the assigned
// port number.
func (p *OFProto) PortAdd(devName, devType string) (uint16, error) {
	dev, err := p.netdevs.Open(devName, devType)
	if err != nil {
		return 0, errors.Wrapf(err, "adding port %v", devName)
	}
	number, err := p.provider.PortAdd(dev)
	// The registry opens its own handle during reconciliation.
	dev.Close()
	if err != nil {
		return 0, errors.Wrapf(err, "adding port %v", devName)
	}
	p.updatePort(devName)

	return number, nil
}

// PortDel detaches the port with the given number from the datapath.
func (p *OFProto) PortDel(number uint16) error {
	port := p.ports[number]
	if port == nil {
		return errors.Wrapf(netdev.ErrNoDevice, "deleting port %v", number)
	}
	name := port.dev.Name()
	if err := p.provider.PortDel(number); err != nil {
		return errors.Wrapf(err, "deleting port %v", name)
	}
	p.updatePort(name)

	return nil
}

// SetDropFrags configures the IP fragment handling policy.
func (p *OFProto) SetDropFrags(drop bool) {
	p.provider.SetDropFrags(drop)
}

func (p *OFProto) DropFrags() bool {
	return p.provider.GetDropFrags()
}

// SetNetFlow configures or disables (nil) NetFlow export.
func (p *OFProto) SetNetFlow(settings *NetFlowSettings) error {
	return p.provider.SetNetFlow(settings)
}

// NetFlowIDs returns the engine type and ID the provider stamps on
// NetFlow records.
func (p *OFProto) NetFlowIDs() (engineType, engineID uint8) {
	return p.provider.NetFlowIDs()
}

// SetSFlow configures or disables (nil) sFlow sampling.
func (p *OFProto) SetSFlow(settings *SFlowSettings) error {
	return p.provider.SetSFlow(settings)
}

// SetCFM configures or disables (nil) CFM on a port.
func (p *OFProto) SetCFM(portNo uint16, settings *CFMSettings) error {
	port := p.ports[portNo]
	if port == nil {
		return errors.Wrapf(netdev.ErrNoDevice, "configuring CFM on port %v", portNo)
	}

	return p.provider.SetCFM(port, settings)
}

// BundleSet registers or reconfigures a port bundle under a stable key.
func (p *OFProto) BundleSet(key interface{}, settings *BundleSettings) error {
	return p.provider.BundleSet(key, settings)
}

// BundleRemove takes a port out of whatever bundle it belongs to.
func (p *OFProto) BundleRemove(portNo uint16) error {
	port := p.ports[portNo]
	if port == nil {
		return errors.Wrapf(netdev.ErrNoDevice, "unbundling port %v", portNo)
	}
	p.provider.BundleRemove(port)

	return nil
}

// MirrorSet registers, reconfigures, or removes (nil) a traffic mirror.
func (p *OFProto) MirrorSet(key interface{}, settings *MirrorSettings) error {
	return p.provider.MirrorSet(key, settings)
}

func (p *OFProto) IsMirrorOutputBundle(key interface{}) bool {
	return p.provider.IsMirrorOutputBundle(key)
}

// SetFloodVLANs restricts flooding to the given VLANs; nil floods all.
func (p *OFProto) SetFloodVLANs(vlans []uint16) error {
	return p.provider.SetFloodVLANs(vlans)
}

// Lookup returns the highest-priority rule matching the flow, or nil.
func (p *OFProto) Lookup(f *flow.Flow) *Rule {
	return p.table.Lookup(f)
}

// AddInternalFlow installs a rule on behalf of the switch
// implementation itself. Such rules normally carry a hidden priority so
// that controllers can neither see nor modify them.
func (p *OFProto) AddInternalFlow(match *flow.Match, priority uint32, actions openflow.ActionList) error {
	if rule := p.table.FindExact(match, priority); rule != nil {
		if rule.actions.Equal(actions) {
			return nil
		}
		if err := rule.modifyActions(actions, rule.cookie); err != nil {
			return errors.Wrap(err, "modifying internal flow")
		}
		return nil
	}
	if _, err := p.newRule(match, priority, actions, 0, 0, 0, false); err != nil {
		return errors.Wrap(err, "adding internal flow")
	}

	return nil
}

// DeleteInternalFlow removes a rule installed with AddInternalFlow. It
// reports whether a rule was actually removed.
func (p *OFProto) DeleteInternalFlow(match *flow.Match, priority uint32) bool {
	rule := p.table.FindExact(match, priority)
	if rule == nil {
		return false
	}
	p.destroyRule(rule)

	return true
}
