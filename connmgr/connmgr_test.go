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

package connmgr

import (
	"bytes"
	"testing"

	"github.com/yamahata/openvswitch/openflow"
)

func TestAcceptAndRemove(t *testing.T) {
	m := NewManager()
	if m.HasControllers() {
		t.Fatal("a fresh manager must have no controllers")
	}

	c1 := m.Accept(true)
	c2 := m.Accept(false)
	if c1.ID() == c2.ID() {
		t.Fatalf("connection ids must be unique, got=%v twice", c1.ID())
	}
	if !c1.IsPrimary() || c2.IsPrimary() {
		t.Fatal("primary flags do not match Accept arguments")
	}
	if len(m.Conns()) != 2 {
		t.Fatalf("expected 2 connections, got=%v", len(m.Conns()))
	}

	m.Remove(c1)
	if len(m.Conns()) != 1 || m.Conns()[0] != c2 {
		t.Fatal("expected only the second connection to remain")
	}
	// Removing twice is harmless.
	m.Remove(c1)
	if !m.HasControllers() {
		t.Fatal("the second connection must survive")
	}
}

func TestRunDrainsInboxInOrder(t *testing.T) {
	m := NewManager()
	c := m.Accept(true)

	c.Send(&openflow.EchoRequest{Header: openflow.Header{Xid: 1}})
	c.Send(&openflow.EchoRequest{Header: openflow.Header{Xid: 2}})

	var seen []uint32
	m.Run(func(conn *Conn, msg openflow.Message) {
		if conn != c {
			t.Fatal("message dispatched on the wrong connection")
		}
		seen = append(seen, msg.XID())
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected xids [1 2], got=%v", seen)
	}

	// The inbox is consumed once.
	m.Run(func(conn *Conn, msg openflow.Message) {
		t.Fatal("the inbox must be empty on the second pass")
	})
}

func TestNewHeaderXIDsIncrease(t *testing.T) {
	m := NewManager()
	h1 := m.NewHeader()
	h2 := m.NewHeader()
	if h1.Xid == 0 {
		t.Fatal("transaction ids start from 1")
	}
	if h2.Xid <= h1.Xid {
		t.Fatalf("expected increasing xids, got=%v then %v", h1.Xid, h2.Xid)
	}
	if h1.Ver != openflow.OF10_VERSION {
		t.Fatalf("expected protocol version %v, got=%v", openflow.OF10_VERSION, h1.Ver)
	}
}

func TestBufferPacketConsumeOnce(t *testing.T) {
	c := newConn(1, true)

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	id := c.BufferPacket(data, 7)

	got, inPort, err := c.RetrieveBuffer(id)
	if err != nil {
		t.Fatalf("unexpected retrieve error: %v", err)
	}
	if !bytes.Equal(got, data) || inPort != 7 {
		t.Fatalf("expected the stored packet back, got=%v port=%v", got, inPort)
	}

	if _, _, err = c.RetrieveBuffer(id); err == nil {
		t.Fatal("a buffer id must be consumed by retrieval")
	} else if e, ok := err.(*openflow.Error); !ok || e.Code != openflow.OFPBRC_BUFFER_UNKNOWN {
		t.Fatalf("expected a buffer-unknown error, got=%v", err)
	}
}

func TestRetrieveNoBuffer(t *testing.T) {
	c := newConn(1, true)

	_, _, err := c.RetrieveBuffer(openflow.NoBuffer)
	if err == nil {
		t.Fatal("expected an error for the no-buffer id")
	}
	e, ok := err.(*openflow.Error)
	if !ok || e.Type != openflow.OFPET_BAD_REQUEST || e.Code != openflow.OFPBRC_BUFFER_EMPTY {
		t.Fatalf("expected a buffer-empty error, got=%v", err)
	}
}

func TestBufferEviction(t *testing.T) {
	c := newConn(1, true)

	first := c.BufferPacket([]byte{0x01}, 1)
	for i := 0; i < PacketBufferCount; i++ {
		c.BufferPacket([]byte{byte(i)}, 1)
	}

	if _, _, err := c.RetrieveBuffer(first); err == nil {
		t.Fatal("expected the oldest buffer evicted")
	}
}

func TestPacketInTruncation(t *testing.T) {
	m := NewManager()
	c := m.Accept(true)
	c.SetMissSendLen(8)

	packet := make([]byte, 64)
	for i := range packet {
		packet[i] = byte(i)
	}
	m.SendPacketIn(3, openflow.OFPR_NO_MATCH, packet, 0)

	replies := c.TakeReplies()
	if len(replies) != 1 {
		t.Fatalf("expected one packet-in, got=%v", len(replies))
	}
	pi := replies[0].(*openflow.PacketIn)
	if len(pi.Data) != 8 {
		t.Fatalf("expected the payload truncated to 8 bytes, got=%v", len(pi.Data))
	}
	if pi.TotalLen != 64 {
		t.Fatalf("expected total length 64, got=%v", pi.TotalLen)
	}
	if pi.BufferID == openflow.NoBuffer {
		t.Fatal("a truncated miss must carry a buffer id")
	}

	// The full packet is retrievable under the advertised buffer id.
	data, inPort, err := c.RetrieveBuffer(pi.BufferID)
	if err != nil {
		t.Fatalf("unexpected retrieve error: %v", err)
	}
	if len(data) != 64 || inPort != 3 {
		t.Fatalf("expected the full packet with port 3, got=%v bytes port=%v", len(data), inPort)
	}
}

func TestPacketInSkippedWhenMissSendLenZero(t *testing.T) {
	m := NewManager()
	muted := m.Accept(true)
	muted.SetMissSendLen(0)
	open := m.Accept(true)

	m.SendPacketIn(1, openflow.OFPR_NO_MATCH, make([]byte, 32), 0)

	if len(muted.TakeReplies()) != 0 {
		t.Fatal("a zero miss send length must suppress miss packet-ins")
	}
	if len(open.TakeReplies()) != 1 {
		t.Fatal("the other connection must still receive the packet-in")
	}
}

func TestPacketInActionNotBuffered(t *testing.T) {
	m := NewManager()
	c := m.Accept(true)
	c.SetMissSendLen(8)

	m.SendPacketIn(1, openflow.OFPR_ACTION, make([]byte, 64), 0)

	replies := c.TakeReplies()
	if len(replies) != 1 {
		t.Fatalf("expected one packet-in, got=%v", len(replies))
	}
	pi := replies[0].(*openflow.PacketIn)
	if pi.BufferID != openflow.NoBuffer {
		t.Fatal("an action packet-in must not be buffered")
	}
	if len(pi.Data) != 64 {
		t.Fatalf("an action packet-in must carry the whole packet, got=%v bytes", len(pi.Data))
	}
}

func TestPacketInActionTruncatedToSendLen(t *testing.T) {
	m := NewManager()
	c := m.Accept(true)

	m.SendPacketIn(1, openflow.OFPR_ACTION, make([]byte, 64), 16)

	replies := c.TakeReplies()
	if len(replies) != 1 {
		t.Fatalf("expected one packet-in, got=%v", len(replies))
	}
	pi := replies[0].(*openflow.PacketIn)
	if len(pi.Data) != 16 {
		t.Fatalf("expected the payload truncated to 16 bytes, got=%v", len(pi.Data))
	}
	if pi.TotalLen != 64 {
		t.Fatalf("expected total length 64, got=%v", pi.TotalLen)
	}
	if pi.BufferID != openflow.NoBuffer {
		t.Fatal("an action packet-in must not be buffered")
	}
}

func TestSlaveSuppressedAsync(t *testing.T) {
	m := NewManager()
	slave := m.Accept(true)
	slave.SetRole(openflow.RoleSlave)
	master := m.Accept(true)

	m.SendFlowRemoved(&openflow.FlowRemoved{Priority: 5, Reason: openflow.OFPRR_DELETE})
	m.SendPortStatus(openflow.OFPPR_MODIFY, openflow.PortDesc{PortNo: 1})
	m.SendPacketIn(1, openflow.OFPR_NO_MATCH, make([]byte, 32), 0)

	if n := len(slave.TakeReplies()); n != 0 {
		t.Fatalf("a slave must receive no asynchronous messages, got=%v", n)
	}
	if n := len(master.TakeReplies()); n != 3 {
		t.Fatalf("expected all 3 notifications on the master, got=%v", n)
	}

	// Giving up the slave role restores delivery.
	slave.SetRole(openflow.RoleOther)
	m.SendFlowRemoved(&openflow.FlowRemoved{Priority: 5, Reason: openflow.OFPRR_DELETE})
	if n := len(slave.TakeReplies()); n != 1 {
		t.Fatalf("expected the notification after leaving the slave role, got=%v", n)
	}
}

func TestFlowRemovedBroadcast(t *testing.T) {
	m := NewManager()
	c1 := m.Accept(true)
	c2 := m.Accept(false)

	m.SendFlowRemoved(&openflow.FlowRemoved{Priority: 5, Reason: openflow.OFPRR_DELETE})

	for _, c := range []*Conn{c1, c2} {
		replies := c.TakeReplies()
		if len(replies) != 1 {
			t.Fatalf("expected the notification on connection %v, got=%v messages", c.ID(), len(replies))
		}
		fr := replies[0].(*openflow.FlowRemoved)
		if fr.Priority != 5 || fr.Reason != openflow.OFPRR_DELETE {
			t.Fatalf("unexpected flow-removed: %+v", fr)
		}
	}
}
