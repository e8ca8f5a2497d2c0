// Package store reads and writes the action-list and cron-job files.
//
// Files are decoded completely before anything is returned, so a malformed
// file never leaves a caller with partially imported state.
package store

import (
	"errors"
	"fmt"
)

// ErrFormat is the sentinel wrapped by every FormatError.
var ErrFormat = errors.New("malformed file")

// FormatError reports a file that is not valid JSON or YAML, has the wrong
// shape or lacks a required key.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

func formatErr(reason string, err error) *FormatError {
	return &FormatError{Reason: reason, Err: err}
}

// withPath fills in the file path of a FormatError raised while decoding.
func withPath(err error, path string) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe.Path == "" {
		fe.Path = path
	}
	return err
}

// IsFormatError reports whether err carries a FormatError.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}
