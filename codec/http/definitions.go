package http

import (
	"bytes"
	"io"
)

const (
	CLRF        = "\r\n"
	headerDelim = ": "
)

var headerEnd = []byte(CLRF + CLRF)

type Version uint8

const (
	VersionUnknown Version = iota
	Version10
	Version11
	Version2
	Version3
)

func ParseVersionFromBytes(b []byte) (Version, error) {
	switch {
	case bytes.Equal(b, []byte("HTTP/1.1")):
		return Version11, nil
	case bytes.Equal(b, []byte("HTTP/1.0")):
		return Version10, nil
	case bytes.Equal(b, []byte("HTTP/2")), bytes.Equal(b, []byte("HTTP/2.0")):
		return Version2, nil
	case bytes.Equal(b, []byte("HTTP/3")), bytes.Equal(b, []byte("HTTP/3.0")):
		return Version3, nil
	}
	return VersionUnknown, ErrNoHTTPVersion
}

func (v Version) String() string {
	switch v {
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	case Version2:
		return "HTTP/2"
	case Version3:
		return "HTTP/3"
	default:
		return "HTTP/?"
	}
}

type Method string

const (
	Get     Method = "GET"
	Head    Method = "HEAD"
	Post    Method = "POST"
	Put     Method = "PUT"
	Delete  Method = "DELETE"
	Connect Method = "CONNECT"
	Options Method = "OPTIONS"
	Trace   Method = "TRACE"
	Patch   Method = "PATCH"
)

var methods = []Method{Get, Head, Post, Put, Delete, Connect, Options, Trace, Patch}

func ParseMethodFromBytes(b []byte) (Method, error) {
	for _, m := range methods {
		if bytes.Equal([]byte(m), b) {
			return m, nil
		}
	}
	return "", ErrNoHTTPFormat
}

func (m Method) String() string {
	return string(m)
}

type Header interface {
	io.WriterTo

	Add(key, value string)
	Set(key, value string)
	Get(key string) string
	Del(key string)
	Has(key string) bool
	Len() int
	Reset()
}
