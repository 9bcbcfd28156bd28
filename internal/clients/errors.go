package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an external-call failure. Callers branch on the kind
// instead of matching error strings.
type Kind string

const (
	// KindUnreachable covers timeouts, connection failures and 5xx replies.
	KindUnreachable Kind = "unreachable"
	// KindAuthExpired means the upstream rejected our credentials/token.
	KindAuthExpired Kind = "auth_expired"
	// KindNotFound means the upstream knows nothing about the requested item.
	KindNotFound Kind = "not_found"
	// KindInvalidResponse means the reply could not be parsed or was missing
	// expected fields.
	KindInvalidResponse Kind = "invalid_response"
)

// Error is the failure type returned by every external client call.
type Error struct {
	Kind Kind
	Op   string // e.g. "warehouse.GetItemsByIds"
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified client error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (anywhere in its chain) is a client error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuthExpired
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return KindUnreachable
	default:
		return KindInvalidResponse
	}
}

// statusError builds the error for a non-2xx reply, keeping a trimmed body
// excerpt for the logs.
func statusError(op, status string, statusCode int, body []byte) *Error {
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	if excerpt == "" {
		return NewError(classifyStatus(statusCode), op, fmt.Errorf("request failed: %s", status))
	}
	return NewError(classifyStatus(statusCode), op, fmt.Errorf("request failed: %s: %s", status, excerpt))
}
