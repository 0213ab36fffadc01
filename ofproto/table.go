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
	"fmt"

	"github.com/yamahata/openvswitch/flow"
)

type tableKey struct {
	match    string
	priority uint32
}

// Table is the rule classifier: rules keyed by (pattern, priority) and
// ordered for highest-priority-first lookup. Rules with equal priority
// keep their insertion order, which is the documented (but not
// contractual) tie-break for lookups.
type Table struct {
	// rules is sorted by descending priority; within one priority band
	// rules appear in insertion order.
	rules []*Rule
	index map[tableKey]*Rule
}

func NewTable() *Table {
	return &Table{index: make(map[tableKey]*Rule)}
}

func key(m *flow.Match, priority uint32) tableKey {
	return tableKey{match: m.Key(), priority: priority}
}

// Lookup returns the highest-priority rule matching the packet fields,
// or nil.
func (r *Table) Lookup(f *flow.Flow) *Rule {
	for _, rule := range r.rules {
		if rule.match.MatchesFlow(f) {
			return rule
		}
	}

	return nil
}

// Insert adds a rule. If a rule with an identical (pattern, priority) key
// already exists it is displaced in place and returned; the caller must
// run its teardown, not drop it.
func (r *Table) Insert(rule *Rule) *Rule {
	k := key(rule.match, rule.priority)
	if old, ok := r.index[k]; ok {
		for i, v := range r.rules {
			if v == old {
				r.rules[i] = rule
				break
			}
		}
		r.index[k] = rule
		old.removed = true
		return old
	}

	// Insert after the last rule of greater or equal priority so that
	// equal priorities keep insertion order.
	i := len(r.rules)
	for ; i > 0; i-- {
		if r.rules[i-1].priority >= rule.priority {
			break
		}
	}
	r.rules = append(r.rules, nil)
	copy(r.rules[i+1:], r.rules[i:])
	r.rules[i] = rule
	r.index[k] = rule

	return nil
}

// FindExact returns the rule with exactly the given key, or nil. Used by
// the strict modify and delete commands.
func (r *Table) FindExact(m *flow.Match, priority uint32) *Rule {
	return r.index[key(m, priority)]
}

// Query returns a cursor over every rule whose key is consistent with the
// (possibly wildcarded) target pattern. A nil target selects all rules.
// The cursor iterates over a snapshot taken now: rules removed after the
// snapshot are skipped, so callers may tear down yielded rules
// mid-iteration.
func (r *Table) Query(target *flow.Match) *Cursor {
	var matched []*Rule
	for _, rule := range r.rules {
		if target == nil || target.Covers(rule.match) {
			matched = append(matched, rule)
		}
	}

	return &Cursor{rules: matched}
}

// Overlaps reports whether any rule with the same priority has a pattern
// overlapping m. Used to implement the reject-on-overlap flow add flag.
func (r *Table) Overlaps(m *flow.Match, priority uint32) bool {
	for _, rule := range r.rules {
		if rule.priority == priority && rule.match.Overlaps(m) {
			return true
		}
	}

	return false
}

// Remove takes a rule out of the table. Removing a rule that is not in
// the table is a no-op.
func (r *Table) Remove(rule *Rule) {
	k := key(rule.match, rule.priority)
	if r.index[k] != rule {
		return
	}
	delete(r.index, k)
	for i, v := range r.rules {
		if v == rule {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			break
		}
	}
	rule.removed = true
}

func (r *Table) Count() int {
	return len(r.rules)
}

func (r *Table) String() string {
	return fmt.Sprintf("flow table with %v rules", len(r.rules))
}

// Cursor walks a query result set. It remains valid while rules are
// deleted through it: a removed rule is never yielded and never revisited.
type Cursor struct {
	rules []*Rule
	pos   int
}

// Next returns the next live rule, or nil at the end.
func (r *Cursor) Next() *Rule {
	for r.pos < len(r.rules) {
		rule := r.rules[r.pos]
		r.pos++
		if !rule.removed {
			return rule
		}
	}

	return nil
}
