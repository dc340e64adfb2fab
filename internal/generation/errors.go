// Package generation runs the cover letter pipeline: save the job, fetch the
// applicant profile, generate the letter, save it and refresh the job. It owns
// the attempt/deadline control and turns every failure into a ClassifiedError.
package generation

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy shared by gateways and the classifier.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidationRejected
	KindUpstreamUnavailable
	KindGenerationTimeout
	KindGenerationRejected
	KindSecurityFlagged
	KindNetwork
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidationRejected:
		return "validation_rejected"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindGenerationTimeout:
		return "generation_timeout"
	case KindGenerationRejected:
		return "generation_rejected"
	case KindSecurityFlagged:
		return "security_flagged"
	case KindNetwork:
		return "network_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown_error"
	}
}

// MarshalText lets kinds appear by name in JSON.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinel causes attached to a cancelled attempt context.
var (
	ErrSuperseded       = errors.New("attempt superseded by a newer run")
	ErrCancelled        = errors.New("attempt cancelled by caller")
	ErrDeadlineExceeded = errors.New("generation deadline exceeded")
)

// Error is a gateway or pipeline failure tagged with a kind.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Fields  []string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a tagged error.
func NewError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
