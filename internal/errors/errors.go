// Package errors provides the error wrapping primitives used throughout the
// repository. It is a thin façade over github.com/pkg/errors that adds a
// "fatal" marker for errors which must abort the running command rather than
// be retried or reported and continued past.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// New, Errorf, Wrap, Wrapf, WithStack, Cause and Is/As are re-exported so
// that callers only ever need to import this package.
var (
	New       = errors.New
	Errorf    = errors.Errorf
	Wrap      = errors.Wrap
	Wrapf     = errors.Wrapf
	WithStack = errors.WithStack
	Cause     = errors.Cause
)

func Is(err, target error) bool             { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }

// fatal marks an error as unrecoverable: the command must stop, not retry.
type fatal struct {
	msg string
}

func (e *fatal) Error() string { return e.msg }

// Fatal creates an error that is marked as fatal.
func Fatal(s string) error {
	return &fatal{msg: s}
}

// Fatalf creates a fatal error based on a format string.
func Fatalf(s string, args ...interface{}) error {
	return &fatal{msg: fmt.Sprintf(s, args...)}
}

// IsFatal returns whether err (or something it wraps) was created with Fatal
// or Fatalf.
func IsFatal(err error) bool {
	var f *fatal
	return As(err, &f)
}
