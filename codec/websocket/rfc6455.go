// Based on https://datatracker.ietf.org/doc/html/rfc6455
package websocket

import (
	"github.com/Mylifeismyhome/wsio/endian"
)

// ---------------------------------------------------
// Framing -------------------------------------------
// ---------------------------------------------------
// Based on https://datatracker.ietf.org/doc/html/rfc6455#section-5.2

const (
	MaxControlFramePayloadLength = 125
	frameMaxHeaderLength         = 14 // everything without the payload
)

const (
	// Mandatory, 2 bytes:
	// byte 1: |fin(1)|rsv1(1)|rsv2(1)|rsv3(1)|opcode(4)|
	// byte 2: |is masked(1)|payload length(7)|
	frameHeaderLength = 2

	bitFIN        = byte(1 << 7)
	bitRSV1       = byte(1 << 6)
	bitRSV2       = byte(1 << 5)
	bitRSV3       = byte(1 << 4)
	bitmaskOpcode = byte(1<<4 - 1)

	bitIsMasked          = byte(1 << 7)
	bitmaskPayloadLength = byte(1<<7 - 1)

	// If |payload length(7)| is <= 125 it is the payload length. 126 means the length is in the following 2 bytes,
	// 127 in the following 8 bytes.
	payloadLength16 = 126
	payloadLength64 = 127

	// Present only if |is masked(1)| is set. Clients mask every frame, servers never do.
	frameMaskLength = 4
)

type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2

	// Reserved for further non-control frames.
	OpcodeReserved3 Opcode = 0x3
	OpcodeReserved4 Opcode = 0x4
	OpcodeReserved5 Opcode = 0x5
	OpcodeReserved6 Opcode = 0x6
	OpcodeReserved7 Opcode = 0x7

	OpcodeClose Opcode = 0x8
	OpcodePing  Opcode = 0x9
	OpcodePong  Opcode = 0xA

	// Reserved for further control frames.
	OpcodeReservedB Opcode = 0xB
	OpcodeReservedC Opcode = 0xC
	OpcodeReservedD Opcode = 0xD
	OpcodeReservedE Opcode = 0xE
	OpcodeReservedF Opcode = 0xF
)

func (c Opcode) IsContinuation() bool { return c == OpcodeContinuation }
func (c Opcode) IsText() bool         { return c == OpcodeText }
func (c Opcode) IsBinary() bool       { return c == OpcodeBinary }
func (c Opcode) IsClose() bool        { return c == OpcodeClose }
func (c Opcode) IsPing() bool         { return c == OpcodePing }
func (c Opcode) IsPong() bool         { return c == OpcodePong }

func (c Opcode) IsReserved() bool {
	return (c >= OpcodeReserved3 && c <= OpcodeReserved7) || c >= OpcodeReservedB
}

// IsControl reports whether c is in the control range, reserved control opcodes included.
func (c Opcode) IsControl() bool {
	return c&0x8 != 0
}

// IsData reports whether c starts a text or binary message.
func (c Opcode) IsData() bool {
	return c.IsText() || c.IsBinary()
}

func (c Opcode) String() string {
	switch c {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		if c.IsReserved() {
			return "reserved"
		}
		return "unknown"
	}
}

// ---------------------------------------------------
// Handshake -----------------------------------------
// ---------------------------------------------------

// Used when constructing the server's Sec-WebSocket-Accept key based on the client's Sec-WebSocket-Key.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const Version = "13"

// ---------------------------------------------------
// Closing -------------------------------------------
// ---------------------------------------------------

// Close status codes that accompany close frames.
type CloseCode uint16

const (
	// CloseNormal signifies normal closure; the connection successfully completed whatever purpose for which it was
	// created.
	CloseNormal CloseCode = 1000

	// CloseGoingAway means endpoint is going away, either because of a server failure or because the browser is
	// navigating away from the page that opened the connection.
	CloseGoingAway CloseCode = 1001

	// CloseProtocolError means the endpoint is terminating the connection due to a protocol error.
	CloseProtocolError CloseCode = 1002

	// CloseUnknownData means the connection is being terminated because the endpoint received data of a type it cannot
	// accept (for example, a text-only endpoint received binary data).
	CloseUnknownData CloseCode = 1003

	// CloseBadPayload means the endpoint is terminating the connection because a message was received that contained
	// inconsistent data (e.g., non-UTF-8 data within a text message).
	CloseBadPayload CloseCode = 1007

	// ClosePolicyError means the endpoint is terminating the connection because it received a message that violates
	// its policy. This is a generic status code, used when codes 1003 and 1009 are not suitable.
	ClosePolicyError CloseCode = 1008

	// CloseTooBig means the endpoint is terminating the connection because a data frame was received that is too
	// large.
	CloseTooBig CloseCode = 1009

	// CloseNeedsExtension means the client is terminating the connection because it expected the server to negotiate
	// one or more extensions, but the server didn't.
	CloseNeedsExtension CloseCode = 1010

	// CloseInternalError means the server is terminating the connection because it encountered an unexpected
	// condition that prevented it from fulfilling the request.
	CloseInternalError CloseCode = 1011

	// -------------------------------------
	// The following are illegal on the wire
	// -------------------------------------

	// CloseNone is used internally to mean "no error". This code is reserved and may not be sent.
	CloseNone CloseCode = 0

	// CloseReserved is reserved for future use by the WebSocket standard.
	CloseReserved CloseCode = 1004

	// CloseNoStatus means no status code was provided in the close frame sent by the peer.
	CloseNoStatus CloseCode = 1005

	// CloseAbnormal means the connection was closed without receiving a close frame.
	CloseAbnormal CloseCode = 1006

	// CloseTLSHandshake means the connection was closed because the TLS handshake failed.
	CloseTLSHandshake CloseCode = 1015
)

// ValidCloseCode reports whether closeCode may appear in a close frame on the wire.
func ValidCloseCode(closeCode CloseCode) bool {
	switch closeCode {
	case CloseNormal,
		CloseGoingAway,
		CloseProtocolError,
		CloseUnknownData,
		CloseBadPayload,
		ClosePolicyError,
		CloseTooBig,
		CloseNeedsExtension,
		CloseInternalError:
		return true
	}
	return closeCode >= 3000 && closeCode <= 4999
}

func (cc CloseCode) String() string {
	switch cc {
	case CloseNormal:
		return "normal"
	case CloseGoingAway:
		return "going_away"
	case CloseProtocolError:
		return "protocol_error"
	case CloseUnknownData:
		return "unsupported_data"
	case CloseReserved:
		return "reserved"
	case CloseNoStatus:
		return "no_status_received"
	case CloseAbnormal:
		return "abnormal"
	case CloseBadPayload:
		return "invalid_data"
	case ClosePolicyError:
		return "policy_violation"
	case CloseTooBig:
		return "message_too_big"
	case CloseNeedsExtension:
		return "missing_extension"
	case CloseInternalError:
		return "internal_error"
	case CloseTLSHandshake:
		return "tls_handshake_failed"
	default:
		return "unknown"
	}
}

func EncodeCloseCode(cc CloseCode) []byte {
	b := make([]byte, 2)
	endian.PutNetwork16(b, uint16(cc))
	return b
}

func DecodeCloseCode(b []byte) CloseCode {
	return CloseCode(endian.Network16(b[:2]))
}
