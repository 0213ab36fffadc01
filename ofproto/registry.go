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
	"sort"

	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/connmgr"
	"github.com/yamahata/openvswitch/netdev"
)

// Registry holds provider factories keyed by type name and the switch
// instances opened through it. Instance names are unique across types.
type Registry struct {
	factories map[string]Factory
	switches  map[string]*OFProto
	netdevs   netdev.Opener
}

func NewRegistry(netdevs netdev.Opener) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		switches:  make(map[string]*OFProto),
		netdevs:   netdevs,
	}
}

// Register makes a provider factory available under its type name.
// Registering two factories with the same type is a programming error.
func (r *Registry) Register(f Factory) {
	if _, ok := r.factories[f.Type()]; ok {
		panic("duplicate provider type: " + f.Type())
	}
	r.factories[f.Type()] = f
}

// Types returns the registered provider type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// Lookup returns the switch with the given name, or nil.
func (r *Registry) Lookup(name string) *OFProto {
	return r.switches[name]
}

// Switches returns all open switch instances, sorted by name.
func (r *Registry) Switches() []*OFProto {
	names := make([]string, 0, len(r.switches))
	for name := range r.switches {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*OFProto, 0, len(names))
	for _, name := range names {
		out = append(out, r.switches[name])
	}

	return out
}

// Open creates a switch instance of the given provider type. The
// provider enumerates its initial ports, and the datapath ID is derived
// from the local port if one exists.
func (r *Registry) Open(name, providerType string, monitor *netdev.Monitor) (*OFProto, error) {
	if _, ok := r.switches[name]; ok {
		return nil, errors.Errorf("switch %v already exists", name)
	}
	factory, ok := r.factories[providerType]
	if !ok {
		return nil, errors.Errorf("unknown provider type %v", providerType)
	}

	p := &OFProto{
		registry:     r,
		name:         name,
		providerType: providerType,
		fallbackDPID: pickFallbackDPID(),
		descriptions: Descriptions{
			Manufacturer: "The openvswitch authors",
			Hardware:     providerType,
			Software:     "openvswitch",
			SerialNumber: "None",
		},
		table:      NewTable(),
		ports:      make(map[uint16]*Port),
		portByName: make(map[string]*Port),
		netdevs:    r.netdevs,
		devMonitor: monitor,
		connmgr:    connmgr.NewManager(),
	}

	provider, err := factory.New(p)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing %v provider for %v", providerType, name)
	}
	p.provider = provider
	p.initPorts()
	p.datapathID = p.pickDatapathID()
	r.switches[name] = p

	logger.Infof("%v: opened switch of type %v with datapath ID %016x", name, providerType, p.datapathID)

	return p, nil
}

func (r *Registry) remove(name string) {
	delete(r.switches, name)
}
