package websocket

import (
	"errors"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/deflate"
)

var (
	ErrPayloadTooBig = errors.New("frame payload too big")

	ErrCannotUpgrade = errors.New("cannot upgrade connection to WebSocket")

	ErrWrongHandshakeState = errors.New("handshake step out of order")

	ErrMessageTooBig = errors.New("message too big")

	ErrInvalidControlFrame = errors.New("invalid control frame")

	ErrControlFrameTooBig = errors.New("control frame too big")

	ErrNonZeroReservedBits = errors.New("non zero reserved bits")

	ErrMaskedFramesFromServer = errors.New("masked frames from server")

	ErrUnmaskedFramesFromClient = errors.New("unmasked frames from client")

	ErrReservedOpcode = errors.New("reserved opcode")

	ErrUnexpectedContinuation = errors.New("continue frame but nothing to continue")

	ErrExpectedContinuation = errors.New("expected continue frame")

	ErrInvalidUTF8 = errors.New("invalid UTF-8 encoding")

	ErrInvalidClosePayload = errors.New("invalid close frame payload")

	ErrInflate = errors.New("cannot inflate compressed message")
)

// CloseCodeOf maps a decoding error to the status the connection must be closed with.
func CloseCodeOf(err error) CloseCode {
	switch {
	case err == nil:
		return CloseNormal
	case errors.Is(err, ErrInvalidUTF8), errors.Is(err, ErrInflate), errors.Is(err, deflate.ErrDeflate):
		return CloseBadPayload
	case errors.Is(err, ErrMessageTooBig),
		errors.Is(err, ErrPayloadTooBig),
		errors.Is(err, bytestream.ErrOutOfMemory):
		return CloseTooBig
	default:
		return CloseProtocolError
	}
}
