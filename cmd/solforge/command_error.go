// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"
)

// ServerError wraps a failed request against a running translator service
// with the response context the user needs to diagnose it.
//
// # Example
//
//	err := NewServerError("POST /v1/translate", 400, body, originalErr)
//	fmt.Println(err.Error()) // "POST /v1/translate (HTTP 400): source is required"
//
//	var srvErr *ServerError
//	if errors.As(err, &srvErr) {
//	    fmt.Println(srvErr.Body)
//	}
type ServerError struct {
	// Endpoint is the method and path that failed.
	Endpoint string

	// StatusCode is the HTTP status (-1 when the request never completed).
	StatusCode int

	// Body contains the response body, trimmed.
	Body string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns a formatted error message including the response body
// when one was received.
func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Body)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Endpoint, e.StatusCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Endpoint, e.StatusCode)
}

// Unwrap enables errors.Is() and errors.As() through the chain.
func (e *ServerError) Unwrap() error {
	return e.Wrapped
}

// HasBody reports whether a response body is available.
func (e *ServerError) HasBody() bool {
	return e.Body != ""
}

// NewServerError creates a ServerError with full context. The body is
// trimmed of surrounding whitespace.
func NewServerError(endpoint string, statusCode int, body string, wrapped error) *ServerError {
	return &ServerError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Body:       strings.TrimSpace(body),
		Wrapped:    wrapped,
	}
}

// WrapServerError wraps an existing error into a ServerError if it isn't
// already one.
func WrapServerError(err error, endpoint string, statusCode int, body string) *ServerError {
	if err == nil {
		return nil
	}

	// Don't double-wrap
	if srvErr, ok := err.(*ServerError); ok {
		return srvErr
	}

	return NewServerError(endpoint, statusCode, body, err)
}

// ExtractBody walks the error chain looking for a ServerError with a
// response body. Returns the first body found, or empty string.
func ExtractBody(err error) string {
	for err != nil {
		if srvErr, ok := err.(*ServerError); ok && srvErr.HasBody() {
			return srvErr.Body
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return ""
}
