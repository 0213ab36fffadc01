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

package ofproto

import (
	"bytes"

	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/openflow"
)

// Port is one forwarding port tracked by the registry. Its device handle
// is exclusively owned by the registry entry; renames and renumbers are
// modeled as delete-then-add, never in-place identity mutation.
type Port struct {
	ofproto *OFProto
	dev     netdev.Netdev
	desc    openflow.PortDesc
	backend PortBackend
}

func (r *Port) Number() uint16 {
	return r.desc.PortNo
}

func (r *Port) Name() string {
	return r.desc.Name
}

// Desc returns the port's full description record.
func (r *Port) Desc() openflow.PortDesc {
	return r.desc
}

// Netdev returns the port's device handle. Backends may read through it
// but must not close or replace it.
func (r *Port) Netdev() netdev.Netdev {
	return r.dev
}

// Port returns the port with the given number, or nil.
func (p *OFProto) Port(number uint16) *Port {
	return p.ports[number]
}

// PortByName returns the port backed by the named device, or nil.
func (p *OFProto) PortByName(name string) *Port {
	return p.portByName[name]
}

// Ports snapshots the registry.
func (p *OFProto) Ports() []*Port {
	out := make([]*Port, 0, len(p.ports))
	for _, port := range p.ports {
		out = append(out, port)
	}

	return out
}

// portOpen opens the device behind an enumerated port and builds its
// description record.
func (p *OFProto) portOpen(rec PortRecord) (netdev.Netdev, openflow.PortDesc, error) {
	dev, err := p.netdevs.Open(rec.Name, rec.Type)
	if err != nil {
		return nil, openflow.PortDesc{}, err
	}

	desc := openflow.PortDesc{PortNo: rec.Number, Name: rec.Name}
	if hwAddr, err := dev.HardwareAddr(); err == nil {
		desc.HWAddr = hwAddr
	}
	if flags, err := dev.Flags(); err == nil && flags&netdev.FlagUp == 0 {
		desc.Config |= openflow.OFPPC_PORT_DOWN
	}
	if carrier, err := dev.Carrier(); err == nil && !carrier {
		desc.State |= openflow.OFPPS_LINK_DOWN
	}
	if curr, advertised, supported, peer, err := dev.Features(); err == nil {
		desc.Curr = curr
		desc.Advertised = advertised
		desc.Supported = supported
		desc.Peer = peer
	}

	return dev, desc, nil
}

// portDescEqual reports whether two descriptions agree on everything but
// name, port number, and the config bits other than PORT_DOWN.
func portDescEqual(a, b *openflow.PortDesc) bool {
	return bytes.Equal(a.HWAddr, b.HWAddr) &&
		a.State == b.State &&
		(a.Config^b.Config)&openflow.OFPPC_PORT_DOWN == 0 &&
		a.Curr == b.Curr &&
		a.Advertised == b.Advertised &&
		a.Supported == b.Supported &&
		a.Peer == b.Peer
}

// portInstall constructs a fresh registry entry over an open device. The
// caller must have removed any conflicting entry first.
func (p *OFProto) portInstall(dev netdev.Netdev, desc openflow.PortDesc) {
	port := &Port{ofproto: p, dev: dev, desc: desc}
	p.ports[desc.PortNo] = port
	p.portByName[desc.Name] = port

	backend, err := p.provider.NewPort(port)
	if err != nil {
		logger.Warningf("%v: could not add port %v (%v)", p.name, desc.Name, err)
		delete(p.ports, desc.PortNo)
		delete(p.portByName, desc.Name)
		dev.Close()
		return
	}
	port.backend = backend
	p.connmgr.SendPortStatus(openflow.OFPPR_ADD, port.desc)
}

// portRemove destroys a registry entry and notifies listeners.
func (p *OFProto) portRemove(port *Port) {
	p.connmgr.SendPortStatus(openflow.OFPPR_DELETE, port.desc)
	p.portDestroy(port)
}

func (p *OFProto) portRemoveWithName(name string) {
	if port, ok := p.portByName[name]; ok {
		p.portRemove(port)
	}
}

func (p *OFProto) portDestroy(port *Port) {
	if port.backend != nil {
		port.backend.Destruct()
	}
	delete(p.ports, port.desc.PortNo)
	delete(p.portByName, port.desc.Name)
	port.dev.Close()
}

// portModified updates a port's properties in place. Name and number
// changes never come through here.
func (p *OFProto) portModified(port *Port, desc *openflow.PortDesc) {
	port.desc.HWAddr = desc.HWAddr
	port.desc.Config = (port.desc.Config &^ openflow.OFPPC_PORT_DOWN) |
		(desc.Config & openflow.OFPPC_PORT_DOWN)
	port.desc.State = desc.State
	port.desc.Curr = desc.Curr
	port.desc.Advertised = desc.Advertised
	port.desc.Supported = desc.Supported
	port.desc.Peer = desc.Peer

	p.connmgr.SendPortStatus(openflow.OFPPR_MODIFY, port.desc)
}

// updatePort reconciles one device name against the registry:
//
//   - device gone: destroy any port with that name;
//   - same number, same name: update properties in place and notify the
//     backend;
//   - otherwise: destroy any conflicting entry (same number or same
//     name) and construct a fresh one.
func (p *OFProto) updatePort(name string) {
	var (
		dev  netdev.Netdev
		desc openflow.PortDesc
	)
	rec, err := p.provider.PortQueryByName(name)
	if err == nil {
		dev, desc, err = p.portOpen(rec)
		if err != nil {
			logger.Warningf("%v: ignoring port %v because its device cannot be opened (%v)", p.name, name, err)
		}
	}
	if err != nil {
		// Any port named 'name' is gone now.
		p.portRemoveWithName(name)
		return
	}

	port := p.ports[rec.Number]
	if port != nil && port.dev.Name() == name {
		if !portDescEqual(&port.desc, &desc) {
			p.portModified(port, &desc)
		}
		// Install the freshly opened handle; the old one is closed
		// only after the backend had a chance to migrate references.
		old := port.dev
		port.dev = dev
		port.backend.Modified()
		old.Close()
		return
	}

	if port != nil {
		p.portRemove(port)
	}
	p.portRemoveWithName(name)
	p.portInstall(dev, desc)
}

// initPorts seeds the registry from the backend's port enumeration.
func (p *OFProto) initPorts() {
	recs, err := p.provider.PortDump()
	if err != nil {
		logger.Errorf("%v: failed to enumerate datapath ports: %v", p.name, err)
		return
	}
	for _, rec := range recs {
		if p.ports[rec.Number] != nil {
			logger.Warningf("%v: ignoring duplicate port %v in datapath", p.name, rec.Number)
			continue
		}
		if p.portByName[rec.Name] != nil {
			logger.Warningf("%v: ignoring duplicate device %v in datapath", p.name, rec.Name)
			continue
		}
		dev, desc, err := p.portOpen(rec)
		if err != nil {
			logger.Warningf("%v: ignoring port %v (%v)", p.name, rec.Name, err)
			continue
		}
		p.portInstall(dev, desc)
	}
}

// reinitPorts rescans every known device after the change feed signaled
// it could not report incremental changes.
func (p *OFProto) reinitPorts() {
	names := make(map[string]bool)
	for _, port := range p.ports {
		names[port.dev.Name()] = true
	}
	if recs, err := p.provider.PortDump(); err == nil {
		for _, rec := range recs {
			names[rec.Name] = true
		}
	}
	for name := range names {
		p.updatePort(name)
	}
}

// applyPortConfig applies requested configuration-bit changes from a
// port-mod request. The PORT_DOWN transition goes through the device
// layer rather than the generic bit path.
func (p *OFProto) applyPortConfig(port *Port, config, mask uint32) {
	oldConfig := port.desc.Config

	mask &= config ^ port.desc.Config
	if mask&openflow.OFPPC_PORT_DOWN != 0 {
		var err error
		if config&openflow.OFPPC_PORT_DOWN != 0 {
			err = port.dev.UpdateFlags(0, netdev.FlagUp)
		} else {
			err = port.dev.UpdateFlags(netdev.FlagUp, 0)
		}
		if err != nil {
			logger.Errorf("%v: failed to change up/down state of %v: %v", p.name, port.Name(), err)
		}
	}

	port.desc.Config ^= mask & (openflow.OFPPC_NO_RECV | openflow.OFPPC_NO_RECV_STP |
		openflow.OFPPC_NO_FLOOD | openflow.OFPPC_NO_FWD | openflow.OFPPC_NO_PACKET_IN)
	if port.desc.Config != oldConfig {
		port.backend.Reconfigured(oldConfig)
	}
}
