package bytestream

import (
	"unicode/utf8"
)

// IsUTF8 reports whether the content is well-formed UTF-8. Overlong encodings and surrogate halves are
// rejected.
func (b *Buffer) IsUTF8() bool {
	return utf8.Valid(b.Bytes())
}

// ToUTF8 replaces every ill-formed sequence with U+FFFD.
func (b *Buffer) ToUTF8() error {
	p := b.Bytes()
	if utf8.Valid(p) {
		return nil
	}

	out := make([]byte, 0, len(p)+8)
	for len(p) > 0 {
		r, n := utf8.DecodeRune(p)
		if r == utf8.RuneError && n == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, p[:n]...)
		}
		p = p[n:]
	}
	if b.limit > 0 && len(out) > b.limit {
		return ErrOutOfMemory
	}
	b.data = out
	b.ri = 0
	return nil
}
