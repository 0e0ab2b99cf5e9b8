package trading

import (
	"errors"
	"net/http"
)

// Kind classifies failures for callers and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUnavailable
	KindConflict
)

var kindNames = map[Kind]string{
	KindInternal:     "internal",
	KindValidation:   "validation",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindUnavailable:  "unavailable",
	KindConflict:     "conflict",
}

// String is the code sent to API clients.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "internal"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(code string) (Kind, bool) {
	for k, name := range kindNames {
		if name == code {
			return k, true
		}
	}
	return KindInternal, false
}

// Retryable reports whether a failure of this kind may succeed when repeated.
func (k Kind) Retryable() bool {
	return k == KindUnavailable || k == KindConflict || k == KindInternal
}

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels of the same kind and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrProfileNotFound      = newError(KindNotFound, "profile not found")
	ErrPositionNotFound     = newError(KindNotFound, "position not found")
	ErrAccountInactive      = newError(KindForbidden, "account is not active")
	ErrInsufficientMargin   = newError(KindValidation, "insufficient free margin")
	ErrDuplicatePosition    = newError(KindValidation, "an open position already exists for this symbol and side")
	ErrInvalidOrder         = newError(KindValidation, "invalid order")
	ErrInvalidCloseQuantity = newError(KindValidation, "invalid close quantity")
	ErrQuoteUnavailable     = newError(KindUnavailable, "market data unavailable")
	ErrQuoteStale           = newError(KindUnavailable, "market data is stale")
	ErrConcurrentUpdate     = newError(KindConflict, "account was modified concurrently, retry")
)

// withDetail keeps the sentinel identity and replaces the message shown to callers.
func withDetail(sentinel *Error, detail string) error {
	return &Error{Kind: sentinel.Kind, Message: detail, Err: sentinel}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindUnavailable:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether repeating the same request may succeed.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
