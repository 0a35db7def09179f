package websocket

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/deflate"
	"github.com/Mylifeismyhome/wsio/endian"
	"github.com/valyala/bytebufferpool"
)

// Frame is one logical WebSocket frame: an opcode, the header flags and an owned payload.
//
// Outbound frames accumulate their payload through Push and are serialised with Write. Inbound frames are filled
// by Read, which leaves the payload unmasked and, for self-contained compressed messages, inflated.
type Frame struct {
	opcode Opcode
	fin    bool
	rsv1   bool

	masked       bool
	explicitMask bool
	autoMask     bool
	mask         [4]byte

	// Outbound: compress with this window on Write. Inbound: RSV1 is accepted only when non-zero.
	deflateBits int

	limit   int
	payload *bytestream.Buffer
}

func NewFrame(opcode Opcode) *Frame {
	return &Frame{
		opcode:  opcode,
		fin:     true,
		payload: bytestream.New(),
	}
}

func (f *Frame) Reset() {
	f.opcode = OpcodeContinuation
	f.fin = true
	f.rsv1 = false
	f.masked = false
	f.explicitMask = false
	f.autoMask = false
	f.mask = [4]byte{}
	f.deflateBits = 0
	f.Flush()
}

// Mask sets the key the payload is XORed with on Write, overriding automatic key generation.
func (f *Frame) Mask(key uint32) {
	f.mask = maskKey(key)
	f.explicitMask = true
}

// SetAutoMask makes Write mask the payload with a fresh random key unless Mask was called.
func (f *Frame) SetAutoMask(v bool) {
	f.autoMask = v
}

// Deflate requests permessage-deflate compression on Write. Only complete text or binary frames are compressed.
// A windowBits of 0 disables compression.
func (f *Frame) Deflate(windowBits int) {
	f.deflateBits = windowBits
}

// SetLimit caps the payload size. 0 means unbounded.
func (f *Frame) SetLimit(n int) {
	f.limit = n
	f.payload.SetLimit(n)
}

// Push appends p to the payload.
func (f *Frame) Push(p []byte) error {
	if err := f.payload.Push(p); err != nil {
		if errors.Is(err, bytestream.ErrOutOfMemory) {
			return fmt.Errorf("%w: %d bytes over limit %d", ErrPayloadTooBig, f.payload.Size()+len(p), f.limit)
		}
		return err
	}
	return nil
}

// Flush discards the payload.
func (f *Frame) Flush() {
	f.payload.Flush()
}

func (f *Frame) Opcode() Opcode     { return f.opcode }
func (f *Frame) SetOpcode(c Opcode) { f.opcode = c & Opcode(bitmaskOpcode) }
func (f *Frame) IsFinal() bool      { return f.fin }
func (f *Frame) SetFinal(v bool)    { f.fin = v }
func (f *Frame) IsRSV1() bool       { return f.rsv1 }
func (f *Frame) IsMasked() bool     { return f.masked }
func (f *Frame) MaskKey() [4]byte   { return f.mask }
func (f *Frame) Payload() []byte    { return f.payload.Bytes() }
func (f *Frame) PayloadSize() int   { return f.payload.Size() }

// PayloadBuffer exposes the payload for zero-copy producers such as the deflate adapter.
func (f *Frame) PayloadBuffer() *bytestream.Buffer {
	return f.payload
}

// IsPayloadUTF8 validates the payload against strict UTF-8.
func (f *Frame) IsPayloadUTF8() bool {
	return f.payload.IsUTF8()
}

func (f *Frame) validateOutbound() error {
	if f.opcode.IsReserved() {
		return ErrReservedOpcode
	}
	if f.opcode.IsControl() {
		if !f.fin {
			return fmt.Errorf("%w: fragmented %s", ErrInvalidControlFrame, f.opcode)
		}
		if f.payload.Size() > MaxControlFramePayloadLength {
			return fmt.Errorf("%w: %d bytes", ErrControlFrameTooBig, f.payload.Size())
		}
	}
	return nil
}

// Write appends the serialised frame to output. Either the whole frame is appended or nothing is.
func (f *Frame) Write(output *bytestream.Buffer) error {
	if err := f.validateOutbound(); err != nil {
		return err
	}

	payload := f.payload.Bytes()

	f.rsv1 = false
	if f.deflateBits > 0 && f.fin && f.opcode.IsData() {
		compressed := bytestream.New()
		if err := deflate.Deflate(f.payload, compressed, f.deflateBits); err != nil {
			return err
		}
		payload = compressed.Bytes()
		f.rsv1 = true
	}

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	var header [frameMaxHeaderLength]byte
	header[0] = byte(f.opcode)
	if f.fin {
		header[0] |= bitFIN
	}
	if f.rsv1 {
		header[0] |= bitRSV1
	}

	n := frameHeaderLength
	switch length := len(payload); {
	case length > 65535:
		header[1] = payloadLength64
		endian.PutNetwork64(header[2:], uint64(length))
		n += 8
	case length > MaxControlFramePayloadLength:
		header[1] = payloadLength16
		endian.PutNetwork16(header[2:], uint16(length))
		n += 2
	default:
		header[1] = byte(length)
	}

	f.masked = f.explicitMask || f.autoMask
	if f.masked {
		if !f.explicitMask {
			f.mask = GenMask()
		}
		header[1] |= bitIsMasked
		copy(header[n:], f.mask[:])
		n += frameMaskLength
	}

	_, _ = b.Write(header[:n])
	start := len(b.B)
	_, _ = b.Write(payload)
	if f.masked {
		Mask(f.mask, b.B[start:])
	}

	return output.Push(b.B)
}

// Read decodes one frame from the front of input.
//
// Input is consumed only when a complete, valid frame is decoded; StatusIncomplete and StatusInvalidData leave it
// untouched. A final compressed frame that is not a continuation is inflated before Read returns. Compressed
// fragments stay compressed so the caller can inflate the reassembled message.
func (f *Frame) Read(input *bytestream.Buffer) (FrameStatus, error) {
	if input.Size() < frameHeaderLength {
		return StatusIncomplete, nil
	}
	raw := input.Bytes()

	b0, b1 := raw[0], raw[1]
	fin := b0&bitFIN != 0
	rsv1 := b0&bitRSV1 != 0
	opcode := Opcode(b0 & bitmaskOpcode)
	masked := b1&bitIsMasked != 0

	n := frameHeaderLength
	switch b1 & bitmaskPayloadLength {
	case payloadLength16:
		n += 2
	case payloadLength64:
		n += 8
	}
	if masked {
		n += frameMaskLength
	}
	if len(raw) < n {
		return StatusIncomplete, nil
	}

	var length uint64
	switch l := b1 & bitmaskPayloadLength; l {
	case payloadLength16:
		length = uint64(endian.Network16(raw[2:]))
	case payloadLength64:
		length = endian.Network64(raw[2:])
		if length>>63 != 0 {
			return StatusInvalidData, fmt.Errorf("%w: most significant length bit set", ErrPayloadTooBig)
		}
	default:
		length = uint64(l)
	}

	switch {
	case b0&(bitRSV2|bitRSV3) != 0:
		return StatusInvalidData, ErrNonZeroReservedBits
	case opcode.IsReserved():
		return StatusInvalidData, fmt.Errorf("%w: 0x%x", ErrReservedOpcode, byte(opcode))
	case opcode.IsControl() && !fin:
		return StatusInvalidData, fmt.Errorf("%w: fragmented %s", ErrInvalidControlFrame, opcode)
	case opcode.IsControl() && length > MaxControlFramePayloadLength:
		return StatusInvalidData, fmt.Errorf("%w: %d bytes", ErrControlFrameTooBig, length)
	case opcode.IsControl() && rsv1:
		return StatusInvalidData, fmt.Errorf("%w: rsv1 on %s", ErrInvalidControlFrame, opcode)
	case rsv1 && (f.deflateBits == 0 || opcode.IsContinuation()):
		return StatusInvalidData, fmt.Errorf("%w: rsv1", ErrNonZeroReservedBits)
	case f.limit > 0 && length > uint64(f.limit):
		return StatusError, fmt.Errorf("%w: %d bytes over limit %d", ErrPayloadTooBig, length, f.limit)
	}

	if uint64(len(raw)-n) < length {
		return StatusIncomplete, nil
	}

	f.opcode = opcode
	f.fin = fin
	f.rsv1 = rsv1
	f.masked = masked
	f.explicitMask = false
	if masked {
		copy(f.mask[:], raw[n-frameMaskLength:n])
	}

	f.payload.Flush()
	f.payload.SetLimit(0)
	_ = f.payload.Push(raw[n : n+int(length)])
	f.payload.SetLimit(f.limit)
	if masked {
		Mask(f.mask, f.payload.Bytes())
	}
	_ = input.Pop(n + int(length))

	if rsv1 && fin {
		if err := f.inflate(); err != nil {
			return statusOf(err), err
		}
	}

	switch {
	case !fin:
		return StatusFragment, nil
	case opcode.IsContinuation():
		return StatusFinal, nil
	default:
		return StatusOK, nil
	}
}

func (f *Frame) inflate() error {
	plain := bytestream.New()
	plain.SetLimit(f.limit)
	if err := deflate.Inflate(f.payload, plain, f.deflateBits); err != nil {
		if errors.Is(err, bytestream.ErrOutOfMemory) {
			return fmt.Errorf("%w: inflated size over limit %d", ErrMessageTooBig, f.limit)
		}
		return fmt.Errorf("%w: %v", ErrInflate, err)
	}
	f.payload.Flush()
	f.payload.SetLimit(0)
	_ = f.payload.Push(plain.Bytes())
	f.payload.SetLimit(f.limit)
	return nil
}

func statusOf(err error) FrameStatus {
	if errors.Is(err, ErrMessageTooBig) || errors.Is(err, ErrPayloadTooBig) {
		return StatusError
	}
	return StatusInvalidData
}

var framePool = sync.Pool{
	New: func() interface{} {
		return NewFrame(OpcodeText)
	},
}

func AcquireFrame() *Frame {
	return framePool.Get().(*Frame)
}

func ReleaseFrame(f *Frame) {
	f.Reset()
	f.SetLimit(0)
	framePool.Put(f)
}
