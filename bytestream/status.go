package bytestream

import "errors"

var (
	ErrOutOfBound  = errors.New("offset or size exceeds the buffer size")
	ErrOutOfMemory = errors.New("buffer limit exceeded")
	ErrBusy        = errors.New("buffer is locked by another caller")
)

// Status is the result vocabulary of buffer operations at foreign-call boundaries.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
	StatusBusy
	StatusOutOfMemory
	StatusOutOfBound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusBusy:
		return "busy"
	case StatusOutOfMemory:
		return "out_of_memory"
	case StatusOutOfBound:
		return "out_of_bound"
	default:
		return "unknown"
	}
}

// StatusOf maps an error returned by a Buffer operation to its Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrBusy):
		return StatusBusy
	case errors.Is(err, ErrOutOfMemory):
		return StatusOutOfMemory
	case errors.Is(err, ErrOutOfBound):
		return StatusOutOfBound
	default:
		return StatusError
	}
}
