package sampler

import (
	"errors"
	"fmt"
)

// Kind classifies why a sampling run failed
type Kind int

const (
	// KindConfig indicates an invalid sampling configuration
	KindConfig Kind = iota + 1
	// KindOpen indicates the input could not be opened
	KindOpen
	// KindDecode indicates the decoder backend failed
	KindDecode
	// KindSeek indicates a seek request failed or never reached its target
	KindSeek
	// KindExhausted indicates the stream ran out before the schedule completed
	KindExhausted
	// KindIO indicates an output file could not be written
	KindIO
	// KindCanceled indicates the run was canceled through its context
	KindCanceled
)

// String returns a human-readable name of the kind
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindOpen:
		return "open"
	case KindDecode:
		return "decode"
	case KindSeek:
		return "seek"
	case KindExhausted:
		return "exhausted"
	case KindIO:
		return "io"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrOpen      = &Error{Kind: KindOpen}
	ErrDecode    = &Error{Kind: KindDecode}
	ErrSeek      = &Error{Kind: KindSeek}
	ErrExhausted = &Error{Kind: KindExhausted}
	ErrIO        = &Error{Kind: KindIO}
	ErrCanceled  = &Error{Kind: KindCanceled}
)

// Error is a failed sampling step
type Error struct {
	Kind  Kind
	Step  string // e.g. "open", "decode", "skip_black", "seek", "emit"
	Index int    // sample index, -1 when not tied to a sample
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Step != "" {
		msg = fmt.Sprintf("%s failed", e.Step)
		if e.Index >= 0 {
			msg = fmt.Sprintf("%s at sample %d", msg, e.Index)
		}
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Step == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, step string, index int, err error) *Error {
	return &Error{Kind: kind, Step: step, Index: index, Err: err}
}

// KindOf returns the kind of a sampling error, or 0 when err is not one
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return 0
}
