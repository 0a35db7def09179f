package websocket

import (
	"fmt"

	"github.com/Mylifeismyhome/wsio/bytestream"
)

// FrameCodec decodes and encodes the frames of one connection.
//
// On top of Frame it enforces the masking rules of its role, reassembles fragmented messages, applies the
// message limit and validates text messages. Control frames may be interleaved with fragments and are returned
// as they arrive.
type FrameCodec struct {
	role        Role
	limit       int
	deflateBits int
	autoMask    bool

	in        *Frame
	assembler *FrameAssembler
}

func NewFrameCodec(role Role, limit int) *FrameCodec {
	c := &FrameCodec{
		role:      role,
		limit:     limit,
		autoMask:  role == RoleClient,
		in:        NewFrame(OpcodeText),
		assembler: NewFrameAssembler(limit),
	}
	c.in.SetLimit(limit)
	return c
}

// SetDeflate enables permessage-deflate with the negotiated window. 0 disables it.
func (c *FrameCodec) SetDeflate(windowBits int) {
	c.deflateBits = windowBits
	c.in.Deflate(windowBits)
}

// SetAutoMask overrides masking of outbound frames. Clients mask by default.
func (c *FrameCodec) SetAutoMask(v bool) {
	c.autoMask = v
}

func (c *FrameCodec) Role() Role { return c.role }

// Decode reads the next frame from input.
//
// The returned frame is owned by the codec and valid until the next call. For StatusOK and StatusFinal it holds
// a complete message or control frame. StatusFragment means a fragment was buffered and there is nothing to
// deliver yet. On StatusInvalidData and StatusError the connection must be closed with CloseCodeOf(err).
func (c *FrameCodec) Decode(input *bytestream.Buffer) (*Frame, FrameStatus, error) {
	status, err := c.in.Read(input)
	if status == StatusIncomplete || err != nil {
		return nil, status, err
	}

	f := c.in
	switch {
	case c.role == RoleServer && !f.IsMasked():
		return nil, StatusInvalidData, ErrUnmaskedFramesFromClient
	case c.role == RoleClient && f.IsMasked():
		return nil, StatusInvalidData, ErrMaskedFramesFromServer
	}

	if f.Opcode().IsControl() {
		return f, StatusOK, nil
	}

	switch status {
	case StatusFragment:
		if f.Opcode().IsContinuation() {
			if !c.assembler.Active() {
				return nil, StatusInvalidData, ErrUnexpectedContinuation
			}
			if err := c.assembler.Append(f.Payload()); err != nil {
				return nil, StatusError, err
			}
			return nil, StatusFragment, nil
		}
		if c.assembler.Active() {
			return nil, StatusInvalidData, ErrExpectedContinuation
		}
		if err := c.assembler.Start(f.Opcode(), f.IsRSV1(), f.Payload()); err != nil {
			return nil, StatusError, err
		}
		return nil, StatusFragment, nil

	case StatusFinal:
		if !c.assembler.Active() {
			return nil, StatusInvalidData, ErrUnexpectedContinuation
		}
		if err := c.assembler.Append(f.Payload()); err != nil {
			return nil, StatusError, err
		}
		if err := c.reassemble(f); err != nil {
			return nil, statusOf(err), err
		}

	default:
		if c.assembler.Active() {
			return nil, StatusInvalidData, ErrExpectedContinuation
		}
	}

	if f.Opcode().IsText() && !f.IsPayloadUTF8() {
		return nil, StatusInvalidData, ErrInvalidUTF8
	}
	return f, status, nil
}

func (c *FrameCodec) reassemble(f *Frame) error {
	opcode, compressed := c.assembler.Opcode(), c.assembler.Compressed()

	f.Flush()
	f.payload.SetLimit(0)
	c.assembler.ReassembleInto(f.payload)
	f.payload.SetLimit(c.limit)
	f.opcode = opcode
	f.rsv1 = compressed

	if compressed {
		return f.inflate()
	}
	return nil
}

// Encode serialises f into output, masking it for clients and compressing complete data frames when deflate was
// negotiated. Nothing is written on error.
func (c *FrameCodec) Encode(f *Frame, output *bytestream.Buffer) error {
	if c.role == RoleServer {
		f.explicitMask = false
		f.autoMask = false
	} else {
		f.autoMask = c.autoMask
	}
	// A frame may ask for a smaller window than negotiated, never for compression the peer did not agree to.
	if c.deflateBits == 0 {
		f.deflateBits = 0
	} else if f.deflateBits == 0 || f.deflateBits > c.deflateBits {
		f.deflateBits = c.deflateBits
	}
	if c.limit > 0 && f.PayloadSize() > c.limit {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrMessageTooBig, f.PayloadSize(), c.limit)
	}
	return f.Write(output)
}

// Reset drops any partially reassembled message.
func (c *FrameCodec) Reset() {
	c.assembler.Reset()
	c.in.Flush()
}
