package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes for the ticket lifecycle and its collaborators.
const (
	CodeAlreadyOpen        = "ALREADY_OPEN"
	CodeTicketClosed       = "TICKET_CLOSED"
	CodeThreadCreateFailed = "THREAD_CREATE_FAILED"
	CodeStorageError       = "STORAGE_ERROR"
	CodeNoSuchTag          = "NO_SUCH_TAG"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewAlreadyOpen reports that a user already has an open ticket.
func NewAlreadyOpen(userID string) error {
	return NewDomainError(CodeAlreadyOpen, "user already has an open ticket", http.StatusConflict, map[string]any{"user_id": userID})
}

// NewTicketClosed reports a relay or close attempt against a ticket that has
// left the OPEN state.
func NewTicketClosed(ticketID string) error {
	return NewDomainError(CodeTicketClosed, "ticket is no longer open", http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewThreadCreateFailed wraps a platform failure during thread creation.
func NewThreadCreateFailed(err error) error {
	return &DomainError{
		Code:       CodeThreadCreateFailed,
		Message:    "platform thread creation failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewStorageError wraps a transcript store I/O failure. The ticket stays in
// CLOSING so the close can be retried.
func NewStorageError(err error) error {
	return &DomainError{
		Code:       CodeStorageError,
		Message:    "transcript persistence failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewNoSuchTag reports a broadcast against an unknown group tag.
func NewNoSuchTag(name string) error {
	return NewDomainError(CodeNoSuchTag, fmt.Sprintf("no such tag %q", name), http.StatusNotFound, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Code extracts the domain error code, or INTERNAL_ERROR for foreign errors.
func Code(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
