// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the error kinds surfaced by the annotation service.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrInvalidInput is returned when a query or tool argument is malformed
	ErrInvalidInput = "invalid_input"

	// ErrTransientUpstream is returned for timeouts, 5xx and rate limiting from a collaborator
	ErrTransientUpstream = "transient_upstream"

	// ErrUpstreamClient is returned for non-retryable 4xx and malformed upstream exchanges
	ErrUpstreamClient = "upstream_client"

	// ErrExtractionFailure is returned when entity extraction output cannot be used
	ErrExtractionFailure = "extraction_failure"

	// ErrConfigurationMissing is returned when an optional capability has no credential
	ErrConfigurationMissing = "configuration_missing"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string, cause error) *Error {
	return NewError(ErrInvalidInput, message, cause)
}

// NewTransientUpstreamError creates a new transient upstream error
func NewTransientUpstreamError(message string, cause error) *Error {
	return NewError(ErrTransientUpstream, message, cause)
}

// NewUpstreamClientError creates a new upstream client error
func NewUpstreamClientError(message string, cause error) *Error {
	return NewError(ErrUpstreamClient, message, cause)
}

// NewExtractionFailureError creates a new extraction failure error
func NewExtractionFailureError(message string, cause error) *Error {
	return NewError(ErrExtractionFailure, message, cause)
}

// NewConfigurationMissingError creates a new configuration missing error
func NewConfigurationMissingError(message string, cause error) *Error {
	return NewError(ErrConfigurationMissing, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// TypeOf returns the type of the first *Error in err's chain, or ErrInternal
// when err carries no typed error. It returns "" for a nil error.
func TypeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrInternal
}

func isType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return isType(err, ErrInvalidInput)
}

// IsTransientUpstream checks if the error is a transient upstream error
func IsTransientUpstream(err error) bool {
	return isType(err, ErrTransientUpstream)
}

// IsUpstreamClient checks if the error is an upstream client error
func IsUpstreamClient(err error) bool {
	return isType(err, ErrUpstreamClient)
}

// IsExtractionFailure checks if the error is an extraction failure error
func IsExtractionFailure(err error) bool {
	return isType(err, ErrExtractionFailure)
}

// IsConfigurationMissing checks if the error is a configuration missing error
func IsConfigurationMissing(err error) bool {
	return isType(err, ErrConfigurationMissing)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}
