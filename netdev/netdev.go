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

// Package netdev defines the device-layer collaborator the port registry
// is reconciled against: opening devices by name, querying their link
// properties, and a non-blocking change-notification feed.
package netdev

import (
	"net"

	"github.com/pkg/errors"
)

// Flags are device administrative flags.
type Flags uint32

const (
	FlagUp Flags = 1 << iota
	FlagPromisc
)

// Netdev is an open handle on one network device. A handle is exclusively
// owned by the port registry entry holding it.
type Netdev interface {
	Name() string
	Type() string
	HardwareAddr() (net.HardwareAddr, error)
	// Features returns the current, advertised, supported, and peer
	// feature bit sets.
	Features() (curr, advertised, supported, peer uint32, err error)
	SetAdvertised(features uint32) error
	Flags() (Flags, error)
	// UpdateFlags turns on the flags in 'on' and off the flags in 'off'.
	UpdateFlags(on, off Flags) error
	Carrier() (bool, error)
	Close() error
}

// Opener opens device handles by name.
type Opener interface {
	Open(name, devType string) (Netdev, error)
	// Exists reports whether the named device currently exists without
	// opening it.
	Exists(name string) bool
}

// ErrNoDevice is returned by Opener.Open when the named device does not
// exist or cannot be opened.
var ErrNoDevice = errors.New("no such network device")
