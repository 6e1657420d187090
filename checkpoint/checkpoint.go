// Package checkpoint decorates errors with the location they passed through.
// Every error added to a checkpoint can still be checked by errors.Is and retrieved by errors.As,
// both the describing error and the cause.
//
// Checkpoint messages are rendered on a single line because they end up in one finding each:
//  bootsector.go:90: boot sector truncated: got 12 bytes, need 512
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// From wraps err in a checkpoint holding the caller location.
// It returns nil if err == nil.
func From(err error) error {
	if err == nil {
		return nil
	}

	// io.EOF must stay comparable with == for io.Reader callers.
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap adds a checkpoint on top of cause, described by err.
// It returns nil if cause == nil, so it can wrap the result of a call unconditionally:
//  func mountImage() error {
//  	err := runMount()
//  	return checkpoint.Wrap(err, ErrMountFailure)
//  }
// errors.Is(mountImage(), ErrMountFailure) then reports true as does errors.Is for the cause.
func Wrap(cause, err error) error {
	if cause == nil {
		return nil
	}

	if cause == io.EOF {
		return io.EOF
	}

	return newCheckpoint(err, cause)
}

func newCheckpoint(err, cause error) *checkpoint {
	// Skip newCheckpoint and From/Wrap.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:   err,
		cause: cause,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err   error
	cause error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) Error() string {
	location := "unknown"
	if e.callerOk {
		location = fmt.Sprintf("%s:%d", e.file, e.line)
	}
	return location + ": " + e.message()
}

// message renders the chain without locations; nested checkpoints only contribute
// their text so the line stays readable.
func (e *checkpoint) message() string {
	cause := e.cause.Error()
	if inner, ok := e.cause.(*checkpoint); ok {
		cause = inner.message()
	}

	if e.err == nil {
		return cause
	}
	return fmt.Sprintf("%v: %s", e.err, cause)
}

func (e *checkpoint) Unwrap() error {
	return e.cause
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}
