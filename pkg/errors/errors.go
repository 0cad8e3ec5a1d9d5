package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the categories of failures surfaced to API callers
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeLoginRequired      ErrorType = "login_required"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeChallengeRequired  ErrorType = "challenge_required"
	ErrorTypeCheckpointRequired ErrorType = "checkpoint_required"
	ErrorTypeInvalidCredentials ErrorType = "invalid_credentials"
	ErrorTypeParsing            ErrorType = "parsing"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error represents an Instagram-side failure with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// pattern maps a set of lower-cased substrings to an error type.
// Order matters: the first matching row wins.
type pattern struct {
	substrings []string
	errType    ErrorType
}

var patterns = []pattern{
	{[]string{"challenge_required"}, ErrorTypeChallengeRequired},
	{[]string{"checkpoint_required"}, ErrorTypeCheckpointRequired},
	{[]string{"429", "too many requests", "rate limit", "please wait a few minutes"}, ErrorTypeRateLimit},
	{[]string{"incorrect", "invalid"}, ErrorTypeInvalidCredentials},
	{[]string{"not found", "404"}, ErrorTypeNotFound},
	{[]string{"private", "login"}, ErrorTypeLoginRequired},
	{[]string{"connection", "timeout", "timed out", "eof", "reset by peer"}, ErrorTypeNetwork},
}

// Classify determines the error type of err. Typed errors produced by the
// adapter win; anything else is matched against the substring table.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var typed *Error
	if errors.As(err, &typed) && typed.Type != "" && typed.Type != ErrorTypeUnknown {
		return typed.Type
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeUnknown
	}

	return ClassifyMessage(err.Error())
}

// ClassifyMessage matches a raw error message against the substring table
func ClassifyMessage(msg string) ErrorType {
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		for _, s := range p.substrings {
			if strings.Contains(lower, s) {
				return p.errType
			}
		}
	}
	return ErrorTypeUnknown
}

// Is reports whether err classifies as the given type
func Is(err error, t ErrorType) bool {
	return err != nil && Classify(err) == t
}

// IsTransient checks if an error type is worth retrying
func IsTransient(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// FromStatusCode builds a typed error for a non-2xx Instagram response
func FromStatusCode(statusCode int, body string) *Error {
	switch {
	case statusCode == 404:
		return New(ErrorTypeNotFound, statusCode, "resource not found")
	case statusCode == 429:
		return New(ErrorTypeRateLimit, statusCode, "too many requests")
	case statusCode >= 500:
		return New(ErrorTypeNetwork, statusCode, "server error")
	case statusCode == 400 || statusCode == 401 || statusCode == 403:
		// Instagram reports throttling, step-up verification and login walls through 4xx bodies
		if e := fromBody(statusCode, body); e != nil {
			return e
		}
		if statusCode == 400 {
			return New(ErrorTypeUnknown, statusCode, "bad request")
		}
		return New(ErrorTypeLoginRequired, statusCode, "login required")
	default:
		return New(ErrorTypeUnknown, statusCode, "unexpected status code: %d", statusCode)
	}
}

func fromBody(statusCode int, body string) *Error {
	switch t := ClassifyMessage(body); t {
	case ErrorTypeRateLimit:
		return New(t, statusCode, "please wait a few minutes before you try again")
	case ErrorTypeChallengeRequired, ErrorTypeCheckpointRequired:
		return New(t, statusCode, "%s", t)
	}
	return nil
}
