// Package erruser provides errors that carry a short user-facing message for
// the CLI and HTTP envelopes while keeping the technical cause reachable via
// Unwrap for "Details:" lines and logs.
package erruser

import "errors"

// Err pairs a user-facing message with an optional cause. Error() returns
// only Msg; the cause stays out of the primary line.
type Err struct {
	Msg string
	Err error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying cause. Safe on a nil receiver.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. A non-nil err is
// kept as the cause; with a nil err the result is a plain error.
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// Message returns the first user-facing message found in err's chain, or
// err.Error() when the chain has no *Err. Returns "" for a nil err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ue *Err
	if errors.As(err, &ue) && ue.Msg != "" {
		return ue.Msg
	}
	return err.Error()
}
