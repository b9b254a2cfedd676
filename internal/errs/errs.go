package errs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	// Append the original err as the last arg for %w.
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// Kind classifies a failure for callers that decide retry policy.
type Kind string

const (
	KindFetch      Kind = "fetch"
	KindDataFormat Kind = "data_format"
	KindStorage    Kind = "storage"
	KindParse      Kind = "parse"
)

var (
	ErrFetch      = errors.New("fetch failed")
	ErrDataFormat = errors.New("invalid data format")
	ErrStorage    = errors.New("storage failure")
	ErrParse      = errors.New("parse failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindFetch:
		return ErrFetch
	case KindDataFormat:
		return ErrDataFormat
	case KindStorage:
		return ErrStorage
	case KindParse:
		return ErrParse
	default:
		return nil
	}
}

// Error is a classified failure. errors.Is(err, ErrStorage) holds for an
// *Error of KindStorage anywhere in the chain.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds a classified error. A nil err yields a bare kind error so that
// callers can report shape problems without an underlying cause.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef is E with a formatted cause.
func Ef(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// LogValue makes slog encode the error as structured fields.
// Usage: slog.Any("err", errs.Loggable(err))
type loggable struct{ err error }

func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
	}
	if kind, ok := KindOf(l.err); ok {
		attrs = append(attrs, slog.String("kind", string(kind)))
	}
	attrs = append(attrs, slog.Any("chain", ErrorChainStrings(l.err)))

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
