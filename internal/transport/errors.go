package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoServerURL  = errors.New("transport: server url missing")
	ErrUnauthorized = errors.New("transport: unauthorized")
)

// Kind classifies a transport failure.
type Kind int

const (
	KindNone Kind = iota
	// KindNoConnection covers network failures and cancellation (status 0).
	KindNoConnection
	// KindConflict is a 409 on a mutating call. Never retried.
	KindConflict
	// KindAuth is a 401.
	KindAuth
	// KindStatus is any other non-2xx response.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNoConnection:
		return "no_connection"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const noConnectionMessage = "000 No connection"

// Error is the only error type returned by Transport.Send.
type Error struct {
	Kind     Kind
	Status   int
	Message  string
	Canceled bool
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind via a template error, e.g. &Error{Kind: KindConflict}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// NoConnection wraps a failure that produced no response.
func NoConnection(err error) *Error {
	return &Error{
		Kind:     KindNoConnection,
		Message:  noConnectionMessage,
		Canceled: errors.Is(err, context.Canceled),
		Err:      err,
	}
}

// StatusError builds the error for a non-2xx response. The body text is used as
// the message when present.
func StatusError(status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}

	kind := KindStatus
	switch status {
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusUnauthorized:
		kind = KindAuth
	}

	return &Error{Kind: kind, Status: status, Message: msg}
}

// KindOf returns the kind of err, or KindNone if it is not a transport error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNone
}

// StatusOf returns the HTTP status carried by err, 0 if none.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsAuth(err error) bool         { return KindOf(err) == KindAuth }
func IsNoConnection(err error) bool { return KindOf(err) == KindNoConnection }

// IsCanceled reports whether err is a no-connection error caused by cancellation.
func IsCanceled(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Canceled
	}
	return errors.Is(err, context.Canceled)
}

// Message returns the human readable message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
