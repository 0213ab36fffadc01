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

import "github.com/yamahata/openvswitch/flow"

// MatchCodec is the external byte codec for match patterns. The transport
// layer uses it to decode inbound match TLVs before handing messages to
// the dispatcher, and to encode patterns into replies. Each of the three
// protocol versions provides its own implementation.
type MatchCodec interface {
	DecodeMatch(b []byte) (*flow.Match, error)
	EncodeMatch(m *flow.Match) ([]byte, error)
}

// ActionCodec is the external byte codec for action lists.
type ActionCodec interface {
	DecodeActions(b []byte) (ActionList, error)
	EncodeActions(l ActionList) ([]byte, error)
}
