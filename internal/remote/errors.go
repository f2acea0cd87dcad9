package remote

import (
	"context"
	"errors"
	"net"
	"strings"
)

type Class int

const (
	// Rejected errors carry a collaborator verdict and are never retried.
	Rejected Class = iota
	// Transient errors (network, gateway, timeout) may be retried once for idempotent reads.
	Transient
)

func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "rejected"
}

// Error is a failed collaborator call. Detail is shown to the operator verbatim.
type Error struct {
	Op     string
	Class  Class
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case strings.TrimSpace(e.Detail) != "":
		return e.Detail
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + " failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Reject(op, detail string) *Error {
	return &Error{Op: op, Class: Rejected, Detail: strings.TrimSpace(detail)}
}

// Wrap classifies err: network and deadline failures are transient, anything
// else is a rejection.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	class := Rejected
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		class = Transient
	}
	return &Error{Op: op, Class: class, Err: err}
}

func IsTransient(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Class == Transient
}

// Detail extracts the human-readable message for a notice.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Error()
	}
	return err.Error()
}
