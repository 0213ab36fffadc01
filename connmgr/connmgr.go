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

// Package connmgr tracks controller connections and their per-connection
// protocol options, and fans asynchronous notifications out to them.
// Transport and connection bookkeeping below the message level are
// delegated to the environment.
package connmgr

import (
	"sync"
	"sync/atomic"

	"github.com/yamahata/openvswitch/openflow"

	"github.com/op/go-logging"
)

var logger = logging.MustGetLogger("connmgr")

// Manager owns every controller connection of one switch instance.
type Manager struct {
	mu      sync.Mutex
	conns   []*Conn
	nextID  int
	version uint8
	xid     uint32
}

func NewManager() *Manager {
	return &Manager{version: openflow.OF10_VERSION}
}

// Accept registers a new connection and returns it.
func (r *Manager) Accept(primary bool) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	c := newConn(r.nextID, primary)
	r.conns = append(r.conns, c)
	logger.Debugf("accepted a controller connection (id=%v, primary=%v)", c.id, primary)

	return c
}

// Remove drops a connection.
func (r *Manager) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range r.conns {
		if v == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			logger.Debugf("removed the controller connection (id=%v)", c.id)
			return
		}
	}
}

// HasControllers reports whether at least one connection is registered.
func (r *Manager) HasControllers() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns) > 0
}

// Conns snapshots the current connection list.
func (r *Manager) Conns() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Conn(nil), r.conns...)
}

// Run drains every connection's inbox, handing each message to handle.
// Handling is synchronous; replies are queued on the connection before the
// next message is consumed, which is what makes a barrier trivial.
func (r *Manager) Run(handle func(*Conn, openflow.Message)) {
	for _, c := range r.Conns() {
		for _, msg := range c.takeInbox() {
			handle(c, msg)
		}
	}
}

func (r *Manager) nextXID() uint32 {
	// Transaction ID starts from 1, not 0.
	return atomic.AddUint32(&r.xid, 1)
}

// NewHeader builds a header for a switch-initiated message.
func (r *Manager) NewHeader() openflow.Header {
	return openflow.Header{Ver: r.version, Xid: r.nextXID()}
}

// SendFlowRemoved broadcasts a flow-removed notification to every
// connection that accepts asynchronous traffic.
func (r *Manager) SendFlowRemoved(fr *openflow.FlowRemoved) {
	fr.Header = r.NewHeader()
	for _, c := range r.Conns() {
		if !c.ReceivesAsync() {
			continue
		}
		if err := c.Reply(fr); err != nil {
			logger.Errorf("failed to send FLOW_REMOVED to connection %v: %v", c.id, err)
		}
	}
}

// SendPortStatus broadcasts a port-status notification with the full port
// description record.
func (r *Manager) SendPortStatus(reason openflow.PortReason, desc openflow.PortDesc) {
	for _, c := range r.Conns() {
		if !c.ReceivesAsync() {
			continue
		}
		ps := &openflow.PortStatus{Header: r.NewHeader(), Reason: reason, Desc: desc}
		if err := c.Reply(ps); err != nil {
			logger.Errorf("failed to send PORT_STATUS to connection %v: %v", c.id, err)
		}
	}
}

// SendPacketIn delivers a packet upward on every connection that accepts
// asynchronous traffic. A table-miss packet is buffered and truncated to
// each connection's miss send length; an action-directed packet is
// truncated to sendLen when it is non-zero.
func (r *Manager) SendPacketIn(inPort uint16, reason openflow.PacketInReason, packet []byte, sendLen uint16) {
	for _, c := range r.Conns() {
		if !c.ReceivesAsync() {
			continue
		}
		data := packet
		bufferID := openflow.NoBuffer
		if reason == openflow.OFPR_NO_MATCH {
			limit := int(c.MissSendLen())
			if limit == 0 {
				continue
			}
			bufferID = c.BufferPacket(packet, inPort)
			if len(data) > limit {
				data = data[:limit]
			}
		} else if sendLen > 0 && len(data) > int(sendLen) {
			data = data[:sendLen]
		}
		pi := &openflow.PacketIn{
			Header:   r.NewHeader(),
			BufferID: bufferID,
			InPort:   inPort,
			Reason:   reason,
			TotalLen: uint16(len(packet)),
			Data:     data,
		}
		if err := c.Reply(pi); err != nil {
			logger.Errorf("failed to send PACKET_IN to connection %v: %v", c.id, err)
		}
	}
}
