package http

import (
	"bytes"
	"io"
	"net/textproto"
	"sort"
)

var _ Header = mapHeader{}

func NewHeader() Header {
	var h mapHeader = make(map[string]string)
	return h
}

// mapHeader keys are stored in canonical MIME form; a repeated key keeps the last value.
type mapHeader map[string]string

func (h mapHeader) Add(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = value
}

// Set replaces the value of an existing key only.
func (h mapHeader) Set(key, value string) {
	key = textproto.CanonicalMIMEHeaderKey(key)
	if _, ok := h[key]; ok {
		h[key] = value
	}
}

func (h mapHeader) Get(key string) string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h mapHeader) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// WriteTo writes the header block, keys sorted, followed by the terminating CLRF.
func (h mapHeader) WriteTo(w io.Writer) (int64, error) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var written int64
	for _, k := range keys {
		for _, s := range [...]string{k, headerDelim, h[k], CLRF} {
			n, err := io.WriteString(w, s)
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
	}
	n, err := io.WriteString(w, CLRF)
	written += int64(n)
	return written, err
}

func (h mapHeader) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

func (h mapHeader) Len() int {
	return len(h)
}

func (h mapHeader) Reset() {
	for k := range h {
		delete(h, k)
	}
}

func DecodeHeaderLine(line []byte) (key, value []byte, err error) {
	if i := bytes.IndexByte(line, ':'); i > 0 {
		key = bytes.TrimSpace(line[:i])
		value = bytes.TrimSpace(line[i+1:])
	} else {
		err = ErrInvalidHeader
	}
	return
}

// HeaderContainsToken reports whether the comma separated header value contains token, ignoring case.
func HeaderContainsToken(value, token string) bool {
	for _, part := range bytes.Split([]byte(value), []byte(",")) {
		if bytes.EqualFold(bytes.TrimSpace(part), []byte(token)) {
			return true
		}
	}
	return false
}

func ExpectBody(header Header) bool {
	return header.Has("Content-Length")
}
