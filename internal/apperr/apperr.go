package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error so the request boundary can map it
// to an HTTP status and a user-visible notice.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindNotFound
	KindInsufficientStock
	KindEmptyCart
	KindValidation
	KindConflict
)

// Error is a kind-tagged application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, resource+" not found")
}

// InsufficientStock names the offending item so checkout and cart failures
// can report which line blocked the operation.
func InsufficientStock(name string) *Error {
	return New(KindInsufficientStock, fmt.Sprintf("insufficient stock for %s", name))
}

func EmptyCart() *Error {
	return New(KindEmptyCart, "your cart is empty")
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// KindOf returns the kind of err, or KindInternal for errors that are not
// application errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code surfaced at the request
// boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindConflict:
		return http.StatusConflict
	case KindEmptyCart, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
