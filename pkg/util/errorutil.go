package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes rendered in the response envelope.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeEmailFailure     = "EMAIL_FAILURE"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// Detail is a single field level message.
type Detail struct {
	Field   string
	Message string
}

// Details keeps field messages in the order they were added and renders
// them as a JSON object with that key order.
type Details []Detail

// MarshalJSON implements json.Marshaler.
func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, detail := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(detail.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(detail.Message)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map applies fn to every message, keeping the order.
func (d Details) Map(fn func(string) string) Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	for i, detail := range d {
		out[i] = Detail{Field: detail.Field, Message: fn(detail.Message)}
	}
	return out
}

// DomainError standardizes application errors. Message and detail messages
// are message keys; the HTTP layer localizes them.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    Details
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
func NewDomainError(code, message string, status int, details Details) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details Details) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewBadRequest(code, message string, err error) error {
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusBadRequest, Err: err}
}

// NewBadGateway reports a failure of an upstream the request depended on.
func NewBadGateway(code, message string, err error) error {
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal_error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == http.StatusNotFound {
			return NewDomainError(CodeNotFound, fiberErr.Message, fiberErr.Code, nil)
		}
		if fiberErr.Code < http.StatusInternalServerError {
			return NewDomainError(http.StatusText(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal_error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
