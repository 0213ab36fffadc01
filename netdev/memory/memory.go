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

// Package memory provides an in-process device layer. The userspace
// datapath and the tests run over it; a kernel datapath would substitute
// its own netdev implementation.
package memory

import (
	"net"
	"sync"

	"github.com/yamahata/openvswitch/netdev"
)

// Registry owns a namespace of in-memory devices and fans device changes
// out to attached monitors.
type Registry struct {
	mu       sync.Mutex
	devices  map[string]*deviceState
	monitors []*netdev.Monitor
}

// deviceState is the identity behind any number of open handles.
type deviceState struct {
	name       string
	devType    string
	hwAddr     net.HardwareAddr
	flags      netdev.Flags
	carrier    bool
	curr       uint32
	advertised uint32
	supported  uint32
	peer       uint32
	gone       bool
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*deviceState)}
}

// Watch attaches a monitor that will receive every subsequent change.
func (r *Registry) Watch(m *netdev.Monitor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.monitors = append(r.monitors, m)
}

// DeviceConfig describes a device to create.
type DeviceConfig struct {
	Name       string
	Type       string
	HWAddr     net.HardwareAddr
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

// Create adds a device to the namespace, up and with carrier, and
// notifies monitors.
func (r *Registry) Create(c DeviceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devType := c.Type
	if devType == "" {
		devType = "system"
	}
	r.devices[c.Name] = &deviceState{
		name:       c.Name,
		devType:    devType,
		hwAddr:     append(net.HardwareAddr(nil), c.HWAddr...),
		flags:      netdev.FlagUp,
		carrier:    true,
		curr:       c.Curr,
		advertised: c.Advertised,
		supported:  c.Supported,
		peer:       c.Peer,
	}
	r.notify(c.Name)
}

// Destroy removes a device. Open handles keep their name but fail all
// further queries, which is how the port registry learns the device is
// gone.
func (r *Registry) Destroy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[name]; ok {
		d.gone = true
		delete(r.devices, name)
		r.notify(name)
	}
}

// SetCarrier flips the link state and notifies monitors.
func (r *Registry) SetCarrier(name string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[name]; ok {
		d.carrier = up
		r.notify(name)
	}
}

// SetHardwareAddr changes a device's MAC in place and notifies monitors.
func (r *Registry) SetHardwareAddr(name string, addr net.HardwareAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[name]; ok {
		d.hwAddr = append(net.HardwareAddr(nil), addr...)
		r.notify(name)
	}
}

// InvalidateAll simulates a change feed that lost individual events.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.monitors {
		m.NotifyAll()
	}
}

// notify is called with r.mu held.
func (r *Registry) notify(name string) {
	for _, m := range r.monitors {
		m.Notify(name)
	}
}

func (r *Registry) Open(name, devType string) (netdev.Netdev, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[name]
	if !ok {
		return nil, netdev.ErrNoDevice
	}
	if devType != "" && devType != d.devType {
		return nil, netdev.ErrNoDevice
	}

	return &handle{registry: r, state: d}, nil
}

func (r *Registry) Exists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.devices[name]
	return ok
}

// handle is one open reference to a device.
type handle struct {
	registry *Registry
	state    *deviceState
	closed   bool
}

func (r *handle) Name() string {
	return r.state.name
}

func (r *handle) Type() string {
	return r.state.devType
}

func (r *handle) HardwareAddr() (net.HardwareAddr, error) {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return nil, netdev.ErrNoDevice
	}
	return append(net.HardwareAddr(nil), r.state.hwAddr...), nil
}

func (r *handle) Features() (curr, advertised, supported, peer uint32, err error) {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return 0, 0, 0, 0, netdev.ErrNoDevice
	}
	return r.state.curr, r.state.advertised, r.state.supported, r.state.peer, nil
}

func (r *handle) SetAdvertised(features uint32) error {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return netdev.ErrNoDevice
	}
	r.state.advertised = features
	r.registry.notify(r.state.name)

	return nil
}

func (r *handle) Flags() (netdev.Flags, error) {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return 0, netdev.ErrNoDevice
	}
	return r.state.flags, nil
}

func (r *handle) UpdateFlags(on, off netdev.Flags) error {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return netdev.ErrNoDevice
	}
	r.state.flags = (r.state.flags | on) &^ off
	r.registry.notify(r.state.name)

	return nil
}

func (r *handle) Carrier() (bool, error) {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	if r.state.gone {
		return false, netdev.ErrNoDevice
	}
	return r.state.carrier, nil
}

func (r *handle) Close() error {
	r.closed = true
	return nil
}
