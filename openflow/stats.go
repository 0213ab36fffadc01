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

package openflow

import (
	"time"

	"github.com/yamahata/openvswitch/flow"
)

// Encoded sizes of fixed statistics records, used to chunk replies at the
// message size limit.
const (
	FlowStatsEntrySize = 88
	PortStatsSize      = 104
	QueueStatsSize     = 32
	TableStatsSize     = 64
	StatsReplyOverhead = 12
)

// TableAll selects every flow table in a stats request.
const TableAll uint8 = 0xFF

// TableEmergency is the reserved emergency table id, which this switch
// does not implement.
const TableEmergency uint8 = 0xFE

type DescStatsRequest struct {
	Header
}

type DescStatsReply struct {
	Header
	Manufacturer string
	Hardware     string
	Software     string
	Serial       string
	Datapath     string
}

type FlowStatsRequest struct {
	Header
	Match   *flow.Match
	TableID uint8
	OutPort uint16
}

type FlowStatsEntry struct {
	TableID     uint8
	Match       *flow.Match
	Priority    uint16
	Duration    time.Duration
	Cookie      uint64
	IdleTimeout uint16
	HardTimeout uint16
	PacketCount uint64
	ByteCount   uint64
	Actions     ActionList
}

// FlowStatsReply carries one chunk of flow statistics. More signals that
// further chunks for the same transaction follow.
type FlowStatsReply struct {
	Header
	More  bool
	Flows []FlowStatsEntry
}

type AggregateStatsRequest struct {
	Header
	Match   *flow.Match
	TableID uint8
	OutPort uint16
}

type AggregateStatsReply struct {
	Header
	PacketCount uint64
	ByteCount   uint64
	FlowCount   uint32
}

type TableStatsRequest struct {
	Header
}

type TableStats struct {
	ID           uint8
	Name         string
	Wildcards    uint32
	MaxEntries   uint32
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

type TableStatsReply struct {
	Header
	Tables []TableStats
}

type PortStatsRequest struct {
	Header
	PortNo uint16
}

type PortStats struct {
	PortNo     uint16
	RxPackets  uint64
	TxPackets  uint64
	RxBytes    uint64
	TxBytes    uint64
	RxDropped  uint64
	TxDropped  uint64
	RxErrors   uint64
	TxErrors   uint64
	RxFrameErr uint64
	RxOverErr  uint64
	RxCRCErr   uint64
	Collisions uint64
}

type PortStatsReply struct {
	Header
	More  bool
	Ports []PortStats
}

// QueueAll selects every queue on a port in a queue stats request.
const QueueAll uint32 = 0xFFFFFFFF

type QueueStatsRequest struct {
	Header
	PortNo  uint16
	QueueID uint32
}

type QueueStats struct {
	PortNo    uint16
	QueueID   uint32
	TxBytes   uint64
	TxPackets uint64
	TxErrors  uint64
}

type QueueStatsReply struct {
	Header
	More   bool
	Queues []QueueStats
}
