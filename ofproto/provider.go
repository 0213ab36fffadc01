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
	"time"

	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/openflow"
)

var (
	// ErrDatapathGone means the forwarding resource underneath the
	// provider disappeared entirely. The owner must tear the switch
	// down; the core never tries to resurrect it.
	ErrDatapathGone = errors.New("datapath was destroyed externally")
	// ErrAgain means a poll-style operation has nothing pending.
	ErrAgain = errors.New("no pending event")
	// ErrNotSupported is returned for optional provider features the
	// backend does not implement.
	ErrNotSupported = errors.New("operation not supported by the datapath")
)

// PortRecord describes a port as enumerated by the backend.
type PortRecord struct {
	Name   string
	Type   string
	Number uint16
}

// NetFlowSettings configures NetFlow export on the backend.
type NetFlowSettings struct {
	Collectors       []string
	EngineType       uint8
	EngineID         uint8
	AddIDToInterface bool
	ActiveTimeout    time.Duration
}

// SFlowSettings configures sFlow export on the backend.
type SFlowSettings struct {
	Targets      []string
	Agent        string
	SamplingRate uint32
	PollInterval uint32
	Header       uint32
}

// CFMSettings configures connectivity fault management on one port.
type CFMSettings struct {
	MPID        uint16
	Interval    time.Duration
	RemoteMPIDs []uint16
}

// BundleSettings configures a logical port bundle (e.g. a LACP trunk)
// used by non-protocol "normal" forwarding.
type BundleSettings struct {
	Name  string
	Ports []uint16
}

// MirrorSettings configures traffic mirroring used by "normal" forwarding.
type MirrorSettings struct {
	Name       string
	SelectSrc  []uint16
	SelectDst  []uint16
	SelectAll  bool
	OutputPort uint16
}

// Provider is the forwarding backend of one switch instance. The core
// never looks past this interface; backends never mutate the core-owned
// base state they are handed.
//
// Construction runs through a Factory: a failed construction is returned
// as an error and is never followed by Destruct. Destruct must not fail.
type Provider interface {
	// Run performs backend-driven work: delivering miss packets upward
	// and expiring timed-out rules through ExpireRule. It returns
	// ErrDatapathGone if the forwarding resource no longer exists.
	Run() error
	// Wait registers for the next condition that should wake Run.
	Wait()
	// Flush is a best-effort bulk pre-clear before whole-table teardown.
	Flush() error
	Destruct()

	GetDropFrags() bool
	SetDropFrags(drop bool)
	SetNetFlow(s *NetFlowSettings) error
	NetFlowIDs() (engineType, engineID uint8)
	SetSFlow(s *SFlowSettings) error
	SetCFM(port *Port, s *CFMSettings) error
	BundleSet(aux interface{}, s *BundleSettings) error
	BundleRemove(port *Port)
	MirrorSet(aux interface{}, s *MirrorSettings) error
	IsMirrorOutputBundle(aux interface{}) bool
	SetFloodVLANs(vlans []uint16) error

	// NewPort attaches backend state to a port whose base fields are
	// fully populated. On error no backend state exists.
	NewPort(port *Port) (PortBackend, error)
	// PortAdd adds a device to the datapath and returns its port number.
	PortAdd(dev netdev.Netdev) (uint16, error)
	// PortDel removes a port number from the datapath.
	PortDel(number uint16) error
	PortQueryByName(name string) (PortRecord, error)
	PortDump() ([]PortRecord, error)
	// PortPoll returns the name of a device whose ports changed behind
	// the core's back, or ErrAgain.
	PortPoll() (string, error)
	PortPollWait()
	QueueStats(port *Port, queueID uint32) ([]openflow.QueueStats, error)
	PortStats(port *Port) (openflow.PortStats, error)

	// NewRule validates and installs a rule whose base fields are fully
	// populated. Rejection (unsupported pattern or actions) is a typed
	// error and leaves no backend state behind.
	NewRule(rule *Rule) (RuleBackend, error)
	// PacketOut executes an action list against one packet outside any
	// rule.
	PacketOut(packet []byte, f *flow.Flow, actions openflow.ActionList) error
}

// PortBackend is the backend half of one port.
type PortBackend interface {
	Destruct()
	// Modified is called after the core replaced the port's device
	// handle or updated its properties in place.
	Modified()
	// Reconfigured is called after the port's configuration bits
	// changed, with the previous value.
	Reconfigured(oldConfig uint32)
	IsLACPCurrent() bool
}

// RuleBackend is the backend half of one rule.
type RuleBackend interface {
	Destruct()
	// Remove pulls the rule out of the forwarding path. Called before
	// Destruct; idempotent.
	Remove()
	Stats() (packets, bytes uint64)
	// Execute runs the rule's actions against one packet and credits
	// the rule's statistics.
	Execute(f *flow.Flow, packet []byte) error
	// ModifyActions validates and applies a replacement action list.
	// On error the previously installed actions remain in effect.
	ModifyActions(actions openflow.ActionList) error
}

// Factory builds providers of one datapath type.
type Factory interface {
	// Type names the datapath type, e.g. "userspace".
	Type() string
	// New attaches a backend to a switch instance whose base fields are
	// fully populated. On error the instance is discarded without
	// Destruct being called.
	New(p *OFProto) (Provider, error)
}
