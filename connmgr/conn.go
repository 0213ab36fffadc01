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
	"fmt"
	"sync"

	"github.com/yamahata/openvswitch/openflow"

	lru "github.com/hashicorp/golang-lru"
)

// PacketBufferCount bounds the number of buffered packets per
// connection; it is also what the switch advertises as its buffer
// count.
const PacketBufferCount = 256

// defaultMissSendLen is how many bytes of a miss packet are sent upward
// until the connection configures its own limit.
const defaultMissSendLen = 128

// Conn is one controller connection. The transport below it is assumed to
// deliver whole, well-formed messages into the inbox and to drain the
// outbox; the core only sees the decoded message stream plus the
// per-connection protocol options stored here.
type Conn struct {
	id      int
	primary bool

	mu             sync.Mutex
	role           openflow.Role
	flowFormat     openflow.FlowFormat
	packetInFormat uint32
	missSendLen    uint16
	inbox          []openflow.Message
	outbox         []openflow.Message

	pktbuf    *lru.Cache
	nextBufID uint32
}

type bufferedPacket struct {
	data   []byte
	inPort uint16
}

func newConn(id int, primary bool) *Conn {
	cache, err := lru.New(PacketBufferCount)
	if err != nil {
		panic(fmt.Sprintf("failed to init the packet buffer: %v", err))
	}

	return &Conn{
		id:          id,
		primary:     primary,
		missSendLen: defaultMissSendLen,
		pktbuf:      cache,
	}
}

func (r *Conn) ID() int {
	return r.id
}

// IsPrimary reports whether this is a primary controller connection.
// Role and config requests are ignored on service connections.
func (r *Conn) IsPrimary() bool {
	return r.primary
}

// ReceivesAsync reports whether asynchronous notifications are delivered
// on this connection. A slave controller sees none until it takes another
// role; a service connection opts out by setting its miss send length to
// zero.
func (r *Conn) ReceivesAsync() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primary {
		return r.role != openflow.RoleSlave
	}

	return r.missSendLen > 0
}

func (r *Conn) Role() openflow.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

func (r *Conn) SetRole(role openflow.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.role = role
}

func (r *Conn) FlowFormat() openflow.FlowFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flowFormat
}

func (r *Conn) SetFlowFormat(f openflow.FlowFormat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flowFormat = f
}

func (r *Conn) PacketInFormat() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packetInFormat
}

func (r *Conn) SetPacketInFormat(f uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packetInFormat = f
}

func (r *Conn) MissSendLen() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.missSendLen
}

func (r *Conn) SetMissSendLen(n uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missSendLen = n
}

// Send injects an inbound message, as the transport would.
func (r *Conn) Send(msg openflow.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox = append(r.inbox, msg)
}

// Reply queues an outbound message for the transport to drain.
func (r *Conn) Reply(msg openflow.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, msg)

	return nil
}

// TakeReplies drains the outbound queue, preserving order.
func (r *Conn) TakeReplies() []openflow.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.outbox
	r.outbox = nil

	return out
}

func (r *Conn) takeInbox() []openflow.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	in := r.inbox
	r.inbox = nil

	return in
}

// BufferPacket stores a packet for later retrieval by buffer id. The
// store is bounded; the least recently buffered packet is evicted first.
func (r *Conn) BufferPacket(data []byte, inPort uint16) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextBufID
	r.nextBufID++
	if r.nextBufID == openflow.NoBuffer {
		r.nextBufID = 0
	}
	r.pktbuf.Add(id, &bufferedPacket{data: data, inPort: inPort})

	return id
}

// RetrieveBuffer removes and returns the packet stored under id. An
// unknown or already consumed id is a typed protocol error.
func (r *Conn) RetrieveBuffer(id uint32) (data []byte, inPort uint16, err error) {
	if id == openflow.NoBuffer {
		return nil, 0, openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_BUFFER_EMPTY)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.pktbuf.Get(id)
	if !ok {
		return nil, 0, openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_BUFFER_UNKNOWN)
	}
	r.pktbuf.Remove(id)
	p := v.(*bufferedPacket)

	return p.data, p.inPort, nil
}
