package stress

import (
	"errors"
	"fmt"
)

// OpError is a fatal operational failure: I/O, locking, geometry or a
// cryptographic primitive. It is never retried.
type OpError struct {
	Op     string
	Offset int64 // -1 when the failure is not tied to a device offset
	Err    error
}

func (e *OpError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op string, off int64, err error) error {
	return &OpError{Op: op, Offset: off, Err: err}
}

// IsOperational reports whether err carries an OpError.
func IsOperational(err error) bool {
	var oe *OpError
	return errors.As(err, &oe)
}

var (
	errShortWrite     = errors.New("short write")
	errShortRead      = errors.New("short read")
	errDigestFinished = errors.New("digest already finalized")
)
