package websocket

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Mask XORs b with the repeating 4-byte key. Applying it twice restores b.
func Mask(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}

func GenMask() (key [4]byte) {
	_, _ = rand.Read(key[:])
	return
}

func maskKey(k uint32) (key [4]byte) {
	binary.BigEndian.PutUint32(key[:], k)
	return
}

// Random returns count cryptographically random bytes, base64 encoded.
func Random(count int) (string, error) {
	b := make([]byte, count)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cannot read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Secret derives the Sec-WebSocket-Accept value from a Sec-WebSocket-Key.
func Secret(key string) string {
	hasher := sha1.New()
	hasher.Write([]byte(key))
	hasher.Write([]byte(GUID))
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil))
}

func EncodeCloseFramePayload(cc CloseCode, reason string) []byte {
	if cc == CloseNone {
		return nil
	}
	b := EncodeCloseCode(cc)
	b = append(b, []byte(reason)...)
	if len(b) > MaxControlFramePayloadLength {
		b = b[:MaxControlFramePayloadLength]
	}
	return b
}

// DecodeCloseFramePayload validates a received close payload. An empty payload yields CloseNoStatus.
func DecodeCloseFramePayload(b []byte) (cc CloseCode, reason string, err error) {
	switch {
	case len(b) == 0:
		return CloseNoStatus, "", nil
	case len(b) == 1:
		return CloseProtocolError, "", ErrInvalidClosePayload
	}

	cc = DecodeCloseCode(b[:2])
	if !ValidCloseCode(cc) {
		return CloseProtocolError, "", fmt.Errorf("%w: code %d", ErrInvalidClosePayload, cc)
	}
	if !utf8.Valid(b[2:]) {
		return CloseBadPayload, "", fmt.Errorf("%w: close reason", ErrInvalidUTF8)
	}
	return cc, string(b[2:]), nil
}
