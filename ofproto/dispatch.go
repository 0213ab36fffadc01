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

	"github.com/pkg/errors"

	"github.com/yamahata/openvswitch/connmgr"
	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/openflow"
)

// handleMessage dispatches one controller request. A typed protocol
// error coming back from a handler turns into an error reply correlated
// to the request; any other error is logged and dropped, never fatal.
func (p *OFProto) handleMessage(c *connmgr.Conn, msg openflow.Message) {
	err := p.dispatch(c, msg)
	if err == nil {
		return
	}
	oferr, ok := errors.Cause(err).(*openflow.Error)
	if !ok {
		logger.Errorf("%v: error handling %T: %v", p.name, msg, err)
		return
	}
	c.Reply(&openflow.ErrorReply{
		Header: replyHeader(msg),
		Type:   oferr.Type,
		Code:   oferr.Code,
		Data:   oferr.Data,
	})
}

func replyHeader(msg openflow.Message) openflow.Header {
	return openflow.Header{Ver: msg.Version(), Xid: msg.XID()}
}

func (p *OFProto) dispatch(c *connmgr.Conn, msg openflow.Message) error {
	switch m := msg.(type) {
	case *openflow.Hello:
		return nil
	case *openflow.EchoRequest:
		return c.Reply(&openflow.EchoReply{Header: replyHeader(m), Data: m.Data})
	case *openflow.FeaturesRequest:
		return p.handleFeatures(c, m)
	case *openflow.GetConfigRequest:
		return p.handleGetConfig(c, m)
	case *openflow.SetConfig:
		return p.handleSetConfig(c, m)
	case *openflow.FlowMod:
		return p.handleFlowMod(c, m)
	case *openflow.PacketOut:
		return p.handlePacketOut(c, m)
	case *openflow.PortMod:
		return p.handlePortMod(c, m)
	case *openflow.BarrierRequest:
		// Request processing is synchronous, so by the time a barrier
		// is seen everything before it has completed.
		return c.Reply(&openflow.BarrierReply{Header: replyHeader(m)})
	case *openflow.RoleRequest:
		return p.handleRoleRequest(c, m)
	case *openflow.SetFlowFormat:
		c.SetFlowFormat(m.Format)
		return nil
	case *openflow.SetPacketInFormat:
		c.SetPacketInFormat(m.Format)
		return nil
	case *openflow.DescStatsRequest:
		return p.handleDescStats(c, m)
	case *openflow.TableStatsRequest:
		return p.handleTableStats(c, m)
	case *openflow.FlowStatsRequest:
		return p.handleFlowStats(c, m)
	case *openflow.AggregateStatsRequest:
		return p.handleAggregateStats(c, m)
	case *openflow.PortStatsRequest:
		return p.handlePortStats(c, m)
	case *openflow.QueueStatsRequest:
		return p.handleQueueStats(c, m)
	default:
		return openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_BAD_TYPE)
	}
}

// rejectSlave guards state-changing requests: a slave connection may
// only read.
func rejectSlave(c *connmgr.Conn) error {
	if c.Role() == openflow.RoleSlave {
		return openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_EPERM)
	}

	return nil
}

// supportedActions is the action type bitmap advertised in the features
// reply.
const supportedActions uint32 = 1<<12 - 1

func (p *OFProto) handleFeatures(c *connmgr.Conn, m *openflow.FeaturesRequest) error {
	reply := &openflow.FeaturesReply{
		Header:     replyHeader(m),
		DPID:       p.datapathID,
		NumBuffers: connmgr.PacketBufferCount,
		NumTables:  1,
		Capabilities: openflow.OFPC_FLOW_STATS | openflow.OFPC_TABLE_STATS |
			openflow.OFPC_PORT_STATS | openflow.OFPC_ARP_MATCH_IP,
		Actions: supportedActions,
	}
	for _, port := range p.Ports() {
		reply.Ports = append(reply.Ports, port.desc)
	}

	return c.Reply(reply)
}

func (p *OFProto) handleGetConfig(c *connmgr.Conn, m *openflow.GetConfigRequest) error {
	flags := openflow.OFPC_FRAG_NORMAL
	if p.provider.GetDropFrags() {
		flags = openflow.OFPC_FRAG_DROP
	}

	return c.Reply(&openflow.GetConfigReply{
		Header:      replyHeader(m),
		Flags:       flags,
		MissSendLen: c.MissSendLen(),
	})
}

func (p *OFProto) handleSetConfig(c *connmgr.Conn, m *openflow.SetConfig) error {
	if err := rejectSlave(c); err != nil {
		return err
	}

	switch m.Flags & openflow.OFPC_FRAG_MASK {
	case openflow.OFPC_FRAG_NORMAL:
		p.provider.SetDropFrags(false)
	case openflow.OFPC_FRAG_DROP:
		p.provider.SetDropFrags(true)
	default:
		logger.Warningf("%v: requested fragment handling mode %v is not supported", p.name, m.Flags&openflow.OFPC_FRAG_MASK)
	}
	c.SetMissSendLen(m.MissSendLen)

	return nil
}

func (p *OFProto) handleFlowMod(c *connmgr.Conn, m *openflow.FlowMod) error {
	if err := rejectSlave(c); err != nil {
		return err
	}
	if m.Flags&openflow.OFPFF_EMERG != 0 {
		// There is no emergency flow table.
		return openflow.NewError(openflow.OFPET_FLOW_MOD_FAILED, openflow.OFPFMFC_ALL_TABLES_FULL)
	}

	switch m.Command {
	case openflow.OFPFC_ADD:
		return p.addFlow(c, m)
	case openflow.OFPFC_MODIFY:
		return p.modifyFlowsLoose(c, m)
	case openflow.OFPFC_MODIFY_STRICT:
		return p.modifyFlowStrict(c, m)
	case openflow.OFPFC_DELETE:
		p.deleteFlowsLoose(m)
		return nil
	case openflow.OFPFC_DELETE_STRICT:
		p.deleteFlowStrict(m)
		return nil
	default:
		return openflow.NewError(openflow.OFPET_FLOW_MOD_FAILED, openflow.OFPFMFC_BAD_COMMAND)
	}
}

// sendBufferedPacket executes the buffered packet a flow-mod referred
// to against the rule the flow-mod produced, crediting that rule.
func sendBufferedPacket(c *connmgr.Conn, bufferID uint32, rule *Rule) error {
	if bufferID == openflow.NoBuffer || rule == nil {
		return nil
	}
	data, inPort, err := c.RetrieveBuffer(bufferID)
	if err != nil {
		return err
	}

	return rule.Execute(inPort, data)
}

func (p *OFProto) addFlow(c *connmgr.Conn, m *openflow.FlowMod) error {
	priority := uint32(m.Priority)
	if m.Flags&openflow.OFPFF_CHECK_OVERLAP != 0 && p.table.Overlaps(m.Match, priority) {
		return openflow.NewError(openflow.OFPET_FLOW_MOD_FAILED, openflow.OFPFMFC_OVERLAP)
	}

	rule, err := p.newRule(m.Match, priority, m.Actions, m.IdleTimeout, m.HardTimeout,
		m.Cookie, m.Flags&openflow.OFPFF_SEND_FLOW_REM != 0)
	if err != nil {
		return err
	}

	return sendBufferedPacket(c, m.BufferID, rule)
}

// modifyFlowsLoose updates the actions of every rule the request's
// pattern covers. When nothing matches the request degenerates to an
// add. A buffered packet is credited to the last rule modified.
func (p *OFProto) modifyFlowsLoose(c *connmgr.Conn, m *openflow.FlowMod) error {
	var last *Rule
	cursor := p.table.Query(m.Match)
	for {
		rule := cursor.Next()
		if rule == nil {
			break
		}
		if rule.IsHidden() {
			continue
		}
		if err := rule.modifyActions(m.Actions, m.Cookie); err != nil {
			return err
		}
		last = rule
	}
	if last == nil {
		return p.addFlow(c, m)
	}

	return sendBufferedPacket(c, m.BufferID, last)
}

func (p *OFProto) modifyFlowStrict(c *connmgr.Conn, m *openflow.FlowMod) error {
	rule := p.table.FindExact(m.Match, uint32(m.Priority))
	if rule == nil || rule.IsHidden() {
		return p.addFlow(c, m)
	}
	if err := rule.modifyActions(m.Actions, m.Cookie); err != nil {
		return err
	}

	return sendBufferedPacket(c, m.BufferID, rule)
}

// deleteFlowsLoose removes every visible rule the request's pattern
// covers, subject to the output-port filter. Deleting nothing is not an
// error.
func (p *OFProto) deleteFlowsLoose(m *openflow.FlowMod) {
	cursor := p.table.Query(m.Match)
	for {
		rule := cursor.Next()
		if rule == nil {
			break
		}
		if rule.IsHidden() || !rule.hasOutPort(m.OutPort) {
			continue
		}
		p.deleteRule(rule, openflow.OFPRR_DELETE)
	}
}

func (p *OFProto) deleteFlowStrict(m *openflow.FlowMod) {
	rule := p.table.FindExact(m.Match, uint32(m.Priority))
	if rule == nil || rule.IsHidden() || !rule.hasOutPort(m.OutPort) {
		return
	}
	p.deleteRule(rule, openflow.OFPRR_DELETE)
}

func (p *OFProto) handlePacketOut(c *connmgr.Conn, m *openflow.PacketOut) error {
	if err := rejectSlave(c); err != nil {
		return err
	}

	data := m.Data
	inPort := m.InPort
	if m.BufferID != openflow.NoBuffer {
		var err error
		data, inPort, err = c.RetrieveBuffer(m.BufferID)
		if err != nil {
			return err
		}
	}

	f, err := flow.Extract(data, inPort)
	if err != nil {
		return errors.Wrap(err, "extracting packet-out flow")
	}

	return p.provider.PacketOut(data, f, m.Actions)
}

func (p *OFProto) handlePortMod(c *connmgr.Conn, m *openflow.PortMod) error {
	if err := rejectSlave(c); err != nil {
		return err
	}

	port := p.ports[m.PortNo]
	if port == nil {
		return openflow.NewError(openflow.OFPET_PORT_MOD_FAILED, openflow.OFPPMFC_BAD_PORT)
	}
	if len(m.HWAddr) != 0 && !bytes.Equal(m.HWAddr, port.desc.HWAddr) {
		return openflow.NewError(openflow.OFPET_PORT_MOD_FAILED, openflow.OFPPMFC_BAD_HW_ADDR)
	}

	p.applyPortConfig(port, m.Config, m.Mask)
	if m.Advertise != 0 {
		if err := port.dev.SetAdvertised(m.Advertise); err != nil {
			logger.Errorf("%v: failed to set advertised features of %v: %v", p.name, port.Name(), err)
		}
	}

	return nil
}

func (p *OFProto) handleRoleRequest(c *connmgr.Conn, m *openflow.RoleRequest) error {
	if !c.IsPrimary() {
		return openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_EPERM)
	}
	switch m.Role {
	case openflow.RoleOther, openflow.RoleMaster, openflow.RoleSlave:
	default:
		return openflow.NewError(openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_BAD_SUBTYPE)
	}

	if m.Role == openflow.RoleMaster {
		// At most one master at a time; the old one becomes a slave.
		for _, other := range p.connmgr.Conns() {
			if other != c && other.Role() == openflow.RoleMaster {
				other.SetRole(openflow.RoleSlave)
			}
		}
	}
	c.SetRole(m.Role)

	return c.Reply(&openflow.RoleReply{Header: replyHeader(m), Role: m.Role})
}
