// Package errs defines the error taxonomy shared by the sync service and
// its mapping onto the HTTP error contract.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindRateLimited
	KindConfiguration
	KindTokenRefresh
	KindUpstream
	KindStorage
)

// Error carries a taxonomy kind alongside the underlying cause. Upstream
// errors additionally record the remote status code.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Upstream records a non-success status from the remote platform that
// has no more specific classification.
func Upstream(status int, err error) *Error {
	return &Error{
		Kind:           KindUpstream,
		Message:        fmt.Sprintf("strava error: %d", status),
		UpstreamStatus: status,
		Err:            err,
	}
}

// KindOf returns the taxonomy kind of err, or KindInternal if err does
// not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var statuses = map[Kind]int{
	KindInternal:         http.StatusInternalServerError,
	KindValidation:       http.StatusBadRequest,
	KindUnauthorized:     http.StatusUnauthorized,
	KindForbidden:        http.StatusForbidden,
	KindNotFound:         http.StatusNotFound,
	KindMethodNotAllowed: http.StatusMethodNotAllowed,
	KindRateLimited:      http.StatusTooManyRequests,
	KindConfiguration:    http.StatusInternalServerError,
	KindTokenRefresh:     http.StatusInternalServerError,
	KindUpstream:         http.StatusInternalServerError,
	KindStorage:          http.StatusInternalServerError,
}

var codes = map[Kind]string{
	KindInternal:         "INTERNAL_ERROR",
	KindValidation:       "VALIDATION_ERROR",
	KindUnauthorized:     "UNAUTHORIZED",
	KindForbidden:        "FORBIDDEN",
	KindNotFound:         "NOT_FOUND",
	KindMethodNotAllowed: "METHOD_NOT_ALLOWED",
	KindRateLimited:      "RATE_LIMITED",
	KindConfiguration:    "CONFIGURATION_ERROR",
	KindTokenRefresh:     "TOKEN_REFRESH_FAILED",
	KindUpstream:         "UPSTREAM_ERROR",
	KindStorage:          "STORAGE_ERROR",
}

// HTTPStatus maps an error onto its response status code.
func HTTPStatus(err error) int {
	return statuses[KindOf(err)]
}

// Code returns the stable wire code used in {error, message} bodies.
func Code(err error) string {
	return codes[KindOf(err)]
}
