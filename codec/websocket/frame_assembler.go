package websocket

import (
	"fmt"

	"github.com/Mylifeismyhome/wsio/bytestream"
)

// FrameAssembler accumulates the fragments of one message until its final frame arrives.
//
// The message type and the compression flag are taken from the first fragment.
type FrameAssembler struct {
	opcode     Opcode
	compressed bool
	active     bool
	parts      int

	limit int
	buf   *bytestream.Buffer
}

func NewFrameAssembler(limit int) *FrameAssembler {
	return &FrameAssembler{
		limit: limit,
		buf:   bytestream.New(),
	}
}

// Start begins a new message with its first fragment.
func (fa *FrameAssembler) Start(opcode Opcode, compressed bool, fragment []byte) error {
	fa.Reset()
	fa.opcode = opcode
	fa.compressed = compressed
	fa.active = true
	return fa.Append(fragment)
}

func (fa *FrameAssembler) Append(fragment []byte) error {
	if fa.limit > 0 && fa.buf.Size()+len(fragment) > fa.limit {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrMessageTooBig, fa.buf.Size()+len(fragment), fa.limit)
	}
	fa.parts++
	return fa.buf.Push(fragment)
}

func (fa *FrameAssembler) Active() bool     { return fa.active }
func (fa *FrameAssembler) Opcode() Opcode   { return fa.opcode }
func (fa *FrameAssembler) Compressed() bool { return fa.compressed }
func (fa *FrameAssembler) Parts() int       { return fa.parts }

// Length returns the number of bytes accumulated so far.
func (fa *FrameAssembler) Length() int {
	return fa.buf.Size()
}

// Reassemble returns a copy of the accumulated message.
func (fa *FrameAssembler) Reassemble() []byte {
	out := make([]byte, fa.buf.Size())
	copy(out, fa.buf.Bytes())
	return out
}

// ReassembleInto moves the accumulated message to the end of dst and resets the assembler.
//
// Returns false if the message does not fit into dst, leaving both untouched.
func (fa *FrameAssembler) ReassembleInto(dst *bytestream.Buffer) bool {
	if err := fa.buf.Move(dst, fa.buf.Size(), 0); err != nil {
		return false
	}
	fa.Reset()
	return true
}

func (fa *FrameAssembler) Reset() {
	fa.buf.Flush()
	fa.opcode = OpcodeContinuation
	fa.compressed = false
	fa.active = false
	fa.parts = 0
}
