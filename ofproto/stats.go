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

	"github.com/yamahata/openvswitch/connmgr"
	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/openflow"
)

// statsBudget is how many fixed-size records fit into one reply chunk.
func statsBudget(recordSize int) int {
	return (openflow.MaxMessageSize - openflow.StatsReplyOverhead) / recordSize
}

func (p *OFProto) handleDescStats(c *connmgr.Conn, m *openflow.DescStatsRequest) error {
	d := p.descriptions

	return c.Reply(&openflow.DescStatsReply{
		Header:       replyHeader(m),
		Manufacturer: d.Manufacturer,
		Hardware:     d.Hardware,
		Software:     d.Software,
		Serial:       d.SerialNumber,
		Datapath:     d.Datapath,
	})
}

func (p *OFProto) handleTableStats(c *connmgr.Conn, m *openflow.TableStatsRequest) error {
	// There is a single table, and hidden rules are not part of its
	// advertised population.
	active := 0
	cursor := p.table.Query(nil)
	for {
		rule := cursor.Next()
		if rule == nil {
			break
		}
		if !rule.IsHidden() {
			active++
		}
	}

	return c.Reply(&openflow.TableStatsReply{
		Header: replyHeader(m),
		Tables: []openflow.TableStats{{
			ID:          0,
			Name:        "classifier",
			Wildcards:   uint32(flow.WildcardAll),
			MaxEntries:  1 << 16,
			ActiveCount: uint32(active),
		}},
	})
}

// tableSelected reports whether a stats request's table id includes our
// single table. The emergency table is never implemented.
func tableSelected(tableID uint8) bool {
	return tableID == openflow.TableAll || tableID == 0
}

func (p *OFProto) handleFlowStats(c *connmgr.Conn, m *openflow.FlowStatsRequest) error {
	budget := statsBudget(openflow.FlowStatsEntrySize)
	var entries []openflow.FlowStatsEntry

	if tableSelected(m.TableID) {
		cursor := p.table.Query(m.Match)
		for {
			rule := cursor.Next()
			if rule == nil {
				break
			}
			if rule.IsHidden() || !rule.hasOutPort(m.OutPort) {
				continue
			}
			if len(entries) == budget {
				if err := c.Reply(&openflow.FlowStatsReply{Header: replyHeader(m), More: true, Flows: entries}); err != nil {
					return err
				}
				entries = nil
			}
			packets, bytes := rule.Stats()
			entries = append(entries, openflow.FlowStatsEntry{
				TableID:     0,
				Match:       rule.match.Clone(),
				Priority:    uint16(rule.priority),
				Duration:    time.Since(rule.created),
				Cookie:      rule.cookie,
				IdleTimeout: rule.idleTimeout,
				HardTimeout: rule.hardTimeout,
				PacketCount: packets,
				ByteCount:   bytes,
				Actions:     rule.actions.Clone(),
			})
		}
	}

	return c.Reply(&openflow.FlowStatsReply{Header: replyHeader(m), Flows: entries})
}

func (p *OFProto) handleAggregateStats(c *connmgr.Conn, m *openflow.AggregateStatsRequest) error {
	reply := &openflow.AggregateStatsReply{Header: replyHeader(m)}

	if tableSelected(m.TableID) {
		cursor := p.table.Query(m.Match)
		for {
			rule := cursor.Next()
			if rule == nil {
				break
			}
			if rule.IsHidden() || !rule.hasOutPort(m.OutPort) {
				continue
			}
			packets, bytes := rule.Stats()
			reply.PacketCount += packets
			reply.ByteCount += bytes
			reply.FlowCount++
		}
	}

	return c.Reply(reply)
}

func (p *OFProto) handlePortStats(c *connmgr.Conn, m *openflow.PortStatsRequest) error {
	var targets []*Port
	if m.PortNo == openflow.OFPP_NONE {
		targets = p.Ports()
	} else if port := p.ports[m.PortNo]; port != nil {
		targets = []*Port{port}
	}

	budget := statsBudget(openflow.PortStatsSize)
	var stats []openflow.PortStats
	for _, port := range targets {
		ps, err := port.ofproto.provider.PortStats(port)
		if err != nil {
			logger.Warningf("%v: no statistics for port %v: %v", p.name, port.Name(), err)
			continue
		}
		if len(stats) == budget {
			if err := c.Reply(&openflow.PortStatsReply{Header: replyHeader(m), More: true, Ports: stats}); err != nil {
				return err
			}
			stats = nil
		}
		stats = append(stats, ps)
	}

	return c.Reply(&openflow.PortStatsReply{Header: replyHeader(m), Ports: stats})
}

func (p *OFProto) handleQueueStats(c *connmgr.Conn, m *openflow.QueueStatsRequest) error {
	var targets []*Port
	if m.PortNo == openflow.OFPP_ALL {
		targets = p.Ports()
	} else if port := p.ports[m.PortNo]; port != nil {
		targets = []*Port{port}
	} else {
		return openflow.NewError(openflow.OFPET_QUEUE_OP_FAILED, openflow.OFPQOFC_BAD_PORT)
	}

	budget := statsBudget(openflow.QueueStatsSize)
	var stats []openflow.QueueStats
	for _, port := range targets {
		qs, err := p.provider.QueueStats(port, m.QueueID)
		if err != nil {
			if m.PortNo != openflow.OFPP_ALL {
				return openflow.NewError(openflow.OFPET_QUEUE_OP_FAILED, openflow.OFPQOFC_BAD_QUEUE)
			}
			continue
		}
		for _, q := range qs {
			if len(stats) == budget {
				if err := c.Reply(&openflow.QueueStatsReply{Header: replyHeader(m), More: true, Queues: stats}); err != nil {
					return err
				}
				stats = nil
			}
			stats = append(stats, q)
		}
	}

	return c.Reply(&openflow.QueueStatsReply{Header: replyHeader(m), Queues: stats})
}
