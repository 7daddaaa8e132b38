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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServerError
		want string
	}{
		{
			name: "with body",
			err:  NewServerError("POST /v1/translate", 400, "source is required", errors.New("bad request")),
			want: "POST /v1/translate (HTTP 400): source is required",
		},
		{
			name: "without body falls back to wrapped",
			err:  NewServerError("POST /v1/translate", 500, "", errors.New("boom")),
			want: "POST /v1/translate (HTTP 500): boom",
		},
		{
			name: "bare",
			err:  NewServerError("GET /v1/runs", 404, "", nil),
			want: "GET /v1/runs (HTTP 404)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestServerError_TrimsBody(t *testing.T) {
	err := NewServerError("POST /v1/scan", 400, "  whitespace body \n", nil)
	assert.Equal(t, "whitespace body", err.Body)
}

func TestServerError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewServerError("POST /v1/translate", -1, "", inner)

	assert.True(t, errors.Is(err, inner))

	var srvErr *ServerError
	wrapped := fmt.Errorf("translate: %w", err)
	require.True(t, errors.As(wrapped, &srvErr))
	assert.Equal(t, -1, srvErr.StatusCode)
}

func TestWrapServerError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, WrapServerError(nil, "POST /v1/translate", 500, ""))
	})

	t.Run("does not double-wrap", func(t *testing.T) {
		original := NewServerError("POST /v1/translate", 400, "bad", nil)
		wrapped := WrapServerError(original, "POST /v1/other", 500, "other")
		assert.Same(t, original, wrapped)
	})

	t.Run("wraps plain errors", func(t *testing.T) {
		wrapped := WrapServerError(errors.New("boom"), "GET /health", 503, "unavailable")
		assert.Equal(t, 503, wrapped.StatusCode)
		assert.Equal(t, "unavailable", wrapped.Body)
	})
}

func TestExtractBody(t *testing.T) {
	t.Run("finds body through the chain", func(t *testing.T) {
		inner := NewServerError("POST /v1/translate", 400, "source is required", nil)
		outer := fmt.Errorf("run failed: %w", inner)
		assert.Equal(t, "source is required", ExtractBody(outer))
	})

	t.Run("empty when no server error", func(t *testing.T) {
		assert.Equal(t, "", ExtractBody(errors.New("plain")))
	})

	t.Run("empty for nil", func(t *testing.T) {
		assert.Equal(t, "", ExtractBody(nil))
	})
}
