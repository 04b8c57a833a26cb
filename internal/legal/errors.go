package legal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind distinguishes the error conditions callers act on differently.
type Kind string

const (
	KindConfig       Kind = "config"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient"
	KindExtraction   Kind = "extraction"
	KindUnsupported  Kind = "unsupported"
	KindUpstream     Kind = "upstream"
)

// Error is a domain error naming the failing source and, where one exists,
// what the operator can do about it.
type Error struct {
	Kind   Kind
	Source string
	Msg    string
	Remedy string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	out := fmt.Sprintf("%s: %s", e.Source, msg)
	if e.Remedy != "" {
		out += ". " + e.Remedy
	}
	return out
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, source, format string, args ...any) *Error {
	return &Error{Kind: kind, Source: source, Msg: fmt.Sprintf(format, args...)}
}

// WithRemedy returns a copy of e carrying a remediation hint.
func (e *Error) WithRemedy(remedy string) *Error {
	cp := *e
	cp.Remedy = remedy
	return &cp
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsRateLimited reports whether err signals an upstream rate limit.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsTerminal reports whether retrying or falling back cannot help: bad or
// missing credentials, rate limits and unsupported inputs.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindConfig, KindUnauthorized, KindRateLimited, KindUnsupported:
		return true
	}
	return false
}

// FromStatus maps an HTTP status to a domain error for source.
func FromStatus(source string, status int, cause error) *Error {
	e := &Error{Source: source, Err: cause}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
		e.Msg = fmt.Sprintf("credential rejected (HTTP %d)", status)
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Msg = "rate limit exceeded (HTTP 429)"
		e.Remedy = "Wait a few moments and try again"
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Msg = "resource not found (HTTP 404)"
	case status >= 500:
		e.Kind = KindTransient
		e.Msg = fmt.Sprintf("upstream unavailable (HTTP %d)", status)
	default:
		e.Kind = KindUpstream
		e.Msg = fmt.Sprintf("unexpected response (HTTP %d)", status)
	}
	return e
}

type statusCoder interface {
	HTTPStatus() int
}

// FromTransport translates a transport failure into a domain error. Errors
// that already carry a Kind pass through unchanged.
func FromTransport(source string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return FromStatus(source, sc.HTTPStatus(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Source: source, Msg: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindTransient, Source: source, Msg: err.Error(), Err: err}
}
