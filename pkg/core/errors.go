package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies broker failures. It is machine readable and stable.
type Kind string

const (
	KindProviderDenied      Kind = "ProviderDeniedAuthorization"
	KindMalformedState      Kind = "MalformedState"
	KindStateMismatch       Kind = "StateMismatch"
	KindTokenExchangeFailed Kind = "TokenExchangeFailed"
	KindTransport           Kind = "TransportError"
	KindCredentialsNotFound Kind = "CredentialsNotFound"
	KindFetchFailed         Kind = "FetchFailed"
	KindPageLimit           Kind = "PageLimitReached"
	KindMalformedRecord     Kind = "MalformedRecord"
	KindInvalidRequest      Kind = "InvalidRequest"
)

var (
	// ErrProviderDenied matches errors where the user or provider refused consent.
	ErrProviderDenied = &Error{Kind: KindProviderDenied}
	// ErrMalformedState matches errors for an unparseable state payload.
	ErrMalformedState = &Error{Kind: KindMalformedState}
	// ErrStateMismatch matches errors where the stored state is absent or differs.
	ErrStateMismatch = &Error{Kind: KindStateMismatch}
	// ErrTokenExchangeFailed matches errors where the token endpoint rejected the code.
	ErrTokenExchangeFailed = &Error{Kind: KindTokenExchangeFailed}
	// ErrTransport matches network and timeout failures.
	ErrTransport = &Error{Kind: KindTransport}
	// ErrCredentialsNotFound matches errors for missing, expired or consumed credentials.
	ErrCredentialsNotFound = &Error{Kind: KindCredentialsNotFound}
	// ErrFetchFailed matches errors for a provider page that returned a non-200 status.
	ErrFetchFailed = &Error{Kind: KindFetchFailed}
	// ErrPageLimit matches errors for a listing cut short by the page limit.
	ErrPageLimit = &Error{Kind: KindPageLimit}
	// ErrMalformedRecord matches errors for a provider record without a native id.
	ErrMalformedRecord = &Error{Kind: KindMalformedRecord}
	// ErrInvalidRequest matches errors for missing or invalid caller input.
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
)

// Error is the typed failure returned by the broker. Status and Body carry
// the upstream HTTP response when one was received.
type Error struct {
	Kind   Kind
	Detail string
	Status int
	Body   string
	Err    error
}

// NewError returns an Error of the given kind with a human readable detail.
func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// UpstreamError returns an Error carrying the upstream status and body.
func UpstreamError(kind Kind, status int, body string) *Error {
	return &Error{
		Kind:   kind,
		Detail: fmt.Sprintf("provider responded with status %d", status),
		Status: status,
		Body:   body,
	}
}

// WrapError returns an Error of the given kind wrapping err.
func WrapError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or an empty Kind if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error kind to the status code the HTTP layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindProviderDenied, KindMalformedState, KindStateMismatch,
		KindCredentialsNotFound, KindInvalidRequest:
		return http.StatusBadRequest
	case KindMalformedRecord:
		return http.StatusUnprocessableEntity
	case KindPageLimit:
		return http.StatusPartialContent
	case KindTokenExchangeFailed, KindFetchFailed:
		return http.StatusBadGateway
	case KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
