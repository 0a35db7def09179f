// Package wserrors holds the sentinel errors shared by every layer of the engine.
package wserrors

import "errors"

var (
	ErrWouldBlock  = errors.New("operation would block")
	ErrCancelled   = errors.New("operation cancelled")
	ErrTimeout     = errors.New("operation timed out")
	ErrNeedMore    = errors.New("need to read/write more bytes")
	ErrConnRefused = errors.New("connection refused") // a connect() on a stream socket found no one listening on the remote address
	ErrClosed      = errors.New("use of closed descriptor")
)

// IsTransient reports whether err only means "try again on the next pass".
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrNeedMore)
}
