// Package apperr defines coded errors returned by the services.
package apperr

import (
	"errors"
	"fmt"
)

// Code ...
type Code string

// Error codes
const (
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodeMissingSignature  Code = "MISSING_SIGNATURE"
	CodeInvalidPayload    Code = "INVALID_PAYLOAD"
	CodeMissingContact    Code = "MISSING_CONTACT"
	CodeUnknownEventType  Code = "UNKNOWN_EVENT_TYPE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeProcessingError   Code = "PROCESSING_ERROR"
	CodeInvalidTimezone   Code = "INVALID_TIMEZONE"
	CodeScheduleInPast    Code = "SCHEDULE_IN_PAST"
	CodeInvalidRecurrence Code = "INVALID_RECURRENCE"
	CodeInvalidCampaign   Code = "INVALID_CAMPAIGN"
)

// Error ...
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New ...
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap ...
func Wrap(code Code, err error) *Error {
	return &Error{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of err, PROCESSING_ERROR for errors without a code
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeProcessingError
}

// MessageOf ...
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Is reports whether err carries the code
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsValidation reports errors that will fail again with the same input and are never retried
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeNotFound, CodeProcessingError:
		return false
	default:
		return true
	}
}
