package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the provider operation and HTTP outcome so callers can map
// failures without parsing response text.
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("idp: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("idp: %s: status %d: %s", e.Op, e.Status, e.Body)
}

// NewError builds a provider error for the given operation and response.
func NewError(op string, status int, body string) *Error {
	return &Error{Op: op, Status: status, Body: body}
}

// IsConflict reports whether err is a provider 409 response.
func IsConflict(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Status == http.StatusConflict
}

// IsNotFound reports whether err is a provider 404 response.
func IsNotFound(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a provider 401 or 403 response.
func IsUnauthorized(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && (pe.Status == http.StatusUnauthorized || pe.Status == http.StatusForbidden)
}
