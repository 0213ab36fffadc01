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

	"github.com/yamahata/openvswitch/flow"
	"github.com/yamahata/openvswitch/openflow"
)

// Rule is one forwarding rule, owned by exactly one switch instance's
// table. Its pattern and action list are owned exclusively by the rule
// and released exactly once at teardown.
type Rule struct {
	ofproto         *OFProto
	match           *flow.Match
	priority        uint32
	created         time.Time
	idleTimeout     uint16
	hardTimeout     uint16
	sendFlowRemoved bool
	cookie          uint64
	actions         openflow.ActionList
	backend         RuleBackend

	// removed means the rule left the table; destroyed means the full
	// teardown ran. A second teardown is a no-op.
	removed   bool
	destroyed bool
}

// newRule runs the construction sequence: populate every base field, ask
// the backend to accept the rule, and only then insert it into the table,
// displacing any identical-key rule. On backend rejection nothing was
// ever visible and the typed error is returned as-is.
func (p *OFProto) newRule(m *flow.Match, priority uint32, actions openflow.ActionList,
	idleTimeout, hardTimeout uint16, cookie uint64, sendFlowRemoved bool) (*Rule, error) {
	r := &Rule{
		ofproto:         p,
		match:           m.Clone(),
		priority:        priority,
		created:         time.Now(),
		idleTimeout:     idleTimeout,
		hardTimeout:     hardTimeout,
		sendFlowRemoved: sendFlowRemoved,
		cookie:          cookie,
		actions:         actions.Clone(),
	}

	backend, err := p.provider.NewRule(r)
	if err != nil {
		logger.Warningf("%v: datapath rejected a new rule (%v): %v", p.name, r.match, err)
		return nil, err
	}
	r.backend = backend

	if old := p.table.Insert(r); old != nil {
		// Identical key: the displaced rule's lifecycle runs to
		// completion. Replacement is not a delete, so no flow-removed
		// notification is sent for it.
		p.destroyRule(old)
	}

	return r, nil
}

// destroyRule is the teardown mirror of newRule: take the rule out of the
// table (a no-op if it already left), pull it out of the backend, and
// release the backend state. Running it twice is a no-op the second time.
func (p *OFProto) destroyRule(r *Rule) {
	if r.destroyed {
		return
	}
	r.destroyed = true
	p.table.Remove(r)
	r.backend.Remove()
	r.backend.Destruct()
}

// deleteRule tears a rule down and notifies controllers if the rule asked
// for removal notification. At most one notification is ever emitted per
// rule.
func (p *OFProto) deleteRule(r *Rule, reason openflow.RemovedReason) {
	if r.destroyed {
		return
	}
	p.sendFlowRemoved(r, reason)
	p.destroyRule(r)
}

func (p *OFProto) sendFlowRemoved(r *Rule, reason openflow.RemovedReason) {
	if r.IsHidden() || !r.sendFlowRemoved {
		return
	}
	packets, bytes := r.backend.Stats()
	p.connmgr.SendFlowRemoved(&openflow.FlowRemoved{
		Match:       r.match.Clone(),
		Priority:    uint16(r.priority),
		Cookie:      r.cookie,
		Reason:      reason,
		Duration:    time.Since(r.created),
		IdleTimeout: r.idleTimeout,
		PacketCount: packets,
		ByteCount:   bytes,
	})
}

// ExpireRule is called by providers from their Run pass when a rule's
// idle or hard timeout elapsed. Any other reason is a programming error.
func (p *OFProto) ExpireRule(r *Rule, reason openflow.RemovedReason) {
	if reason != openflow.OFPRR_IDLE_TIMEOUT && reason != openflow.OFPRR_HARD_TIMEOUT {
		panic("ExpireRule called with a non-timeout reason")
	}
	p.deleteRule(r, reason)
}

// modifyActions replaces the rule's action list in place after the
// backend re-validates it. On rejection the installed actions stay in
// effect and the error is surfaced.
func (r *Rule) modifyActions(actions openflow.ActionList, cookie uint64) error {
	if !r.actions.Equal(actions) {
		if err := r.backend.ModifyActions(actions); err != nil {
			return err
		}
		r.actions = actions.Clone()
	}
	r.cookie = cookie

	return nil
}

// hasOutPort reports whether the rule's action list outputs to the port,
// with OFPP_NONE meaning "no constraint".
func (r *Rule) hasOutPort(port uint16) bool {
	return r.actions.OutputsTo(port)
}

// Execute runs the rule's actions against one packet, crediting the
// rule's statistics. The packet does not have to match the rule.
func (r *Rule) Execute(inPort uint16, packet []byte) error {
	f, err := flow.Extract(packet, inPort)
	if err != nil {
		return err
	}

	return r.backend.Execute(f, packet)
}

// IsHidden reports whether the rule's priority is outside the
// protocol-visible range. Hidden rules implement switch-internal default
// behavior: they never appear in stats and wildcard deletes skip them.
func (r *Rule) IsHidden() bool {
	return r.priority > openflow.VisiblePriorityMax
}

// Match returns the rule's pattern. Callers must not mutate it.
func (r *Rule) Match() *flow.Match {
	return r.match
}

func (r *Rule) Priority() uint32 {
	return r.priority
}

func (r *Rule) Cookie() uint64 {
	return r.cookie
}

// Actions returns the rule's action list. Callers must not mutate it.
func (r *Rule) Actions() openflow.ActionList {
	return r.actions
}

func (r *Rule) Created() time.Time {
	return r.created
}

func (r *Rule) IdleTimeout() time.Duration {
	return time.Duration(r.idleTimeout) * time.Second
}

func (r *Rule) HardTimeout() time.Duration {
	return time.Duration(r.hardTimeout) * time.Second
}

// Stats returns the rule's packet and byte counters from the backend.
func (r *Rule) Stats() (packets, bytes uint64) {
	return r.backend.Stats()
}
