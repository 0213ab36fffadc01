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

import "fmt"

// Error types.
const (
	OFPET_HELLO_FAILED uint16 = iota
	OFPET_BAD_REQUEST
	OFPET_BAD_ACTION
	OFPET_FLOW_MOD_FAILED
	OFPET_PORT_MOD_FAILED
	OFPET_QUEUE_OP_FAILED
)

// Bad-request codes.
const (
	OFPBRC_BAD_VERSION uint16 = iota
	OFPBRC_BAD_TYPE
	OFPBRC_BAD_STAT
	OFPBRC_BAD_VENDOR
	OFPBRC_BAD_SUBTYPE
	OFPBRC_EPERM
	OFPBRC_BAD_LEN
	OFPBRC_BUFFER_EMPTY
	OFPBRC_BUFFER_UNKNOWN
)

// Bad-action codes.
const (
	OFPBAC_BAD_TYPE uint16 = iota
	OFPBAC_BAD_LEN
	OFPBAC_BAD_VENDOR
	OFPBAC_BAD_VENDOR_TYPE
	OFPBAC_BAD_OUT_PORT
	OFPBAC_BAD_ARGUMENT
	OFPBAC_EPERM
	OFPBAC_TOO_MANY
	OFPBAC_BAD_QUEUE
)

// Flow-mod failure codes.
const (
	OFPFMFC_ALL_TABLES_FULL uint16 = iota
	OFPFMFC_OVERLAP
	OFPFMFC_EPERM
	OFPFMFC_BAD_EMERG_TIMEOUT
	OFPFMFC_BAD_COMMAND
	OFPFMFC_UNSUPPORTED
)

// Port-mod failure codes.
const (
	OFPPMFC_BAD_PORT uint16 = iota
	OFPPMFC_BAD_HW_ADDR
)

// Queue-op failure codes.
const (
	OFPQOFC_BAD_PORT uint16 = iota
	OFPQOFC_BAD_QUEUE
	OFPQOFC_EPERM
)

// Error is the typed protocol error surfaced to a remote peer as an error
// reply correlated to the offending request. Every dispatcher reject path
// returns one; it is never fatal to the switch instance.
type Error struct {
	Type uint16
	Code uint16
	Data []byte
}

func NewError(errType, code uint16) *Error {
	return &Error{Type: errType, Code: code}
}

func (r *Error) Error() string {
	return fmt.Sprintf("openflow error (type=%v, code=%v)", r.Type, r.Code)
}

// ErrorReply is the wire message conveying an Error back to the peer.
type ErrorReply struct {
	Header
	Type uint16
	Code uint16
	Data []byte
}
