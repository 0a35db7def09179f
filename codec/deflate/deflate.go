// Package deflate compresses and decompresses whole messages with the RFC 7692 sync-flush framing.
//
// Every call is independent: no sliding window survives between messages.
package deflate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/klauspost/compress/flate"
	"github.com/valyala/bytebufferpool"
)

const (
	MinWindowBits = 8
	MaxWindowBits = 15
)

var ErrDeflate = errors.New("deflate stream error")

// tail is the empty stored block a sync flush ends with. It is stripped on the wire.
var tail = []byte{0x00, 0x00, 0xff, 0xff}

// final is appended after the restored tail so the reader sees a terminated stream.
var final = []byte{0x01, 0x00, 0x00, 0xff, 0xff}

func windowSize(bits int) int {
	if bits < MinWindowBits {
		bits = MinWindowBits
	} else if bits > MaxWindowBits {
		bits = MaxWindowBits
	}
	return 1 << bits
}

// Deflate compresses the content of input and appends it to output. input is left untouched and output
// is only modified on success.
func Deflate(input, output *bytestream.Buffer, windowBits int) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	w, err := flate.NewWriterWindow(b, windowSize(windowBits))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeflate, err)
	}
	if _, err := w.Write(input.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrDeflate, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeflate, err)
	}

	out := b.B
	if bytes.HasSuffix(out, tail) {
		out = out[:len(out)-len(tail)]
	}
	if len(out) == 0 {
		// An empty message is sent as a single empty stored block.
		out = []byte{0x00}
	}
	return output.Push(out)
}

// Inflate decompresses the content of input and appends it to output. windowBits is accepted for symmetry;
// an inflater always allocates the full 32KiB window so any negotiated size decodes.
func Inflate(input, output *bytestream.Buffer, windowBits int) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	r := flate.NewReader(io.MultiReader(
		bytes.NewReader(input.Bytes()),
		bytes.NewReader(tail),
		bytes.NewReader(final),
	))
	defer r.Close()

	limit := output.Limit()
	if limit > 0 {
		limit -= output.Size()
		if limit < 0 {
			return bytestream.ErrOutOfMemory
		}
		n, err := io.Copy(b, io.LimitReader(r, int64(limit)+1))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeflate, err)
		}
		if n > int64(limit) {
			return bytestream.ErrOutOfMemory
		}
	} else if _, err := b.ReadFrom(r); err != nil {
		return fmt.Errorf("%w: %v", ErrDeflate, err)
	}

	return output.Push(b.B)
}
