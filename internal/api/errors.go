package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated wraps every 401 the backend returns. Callers treat it
// as "session is no longer valid" regardless of which operation produced it.
var ErrUnauthenticated = errors.New("unauthenticated")

// Error is the normalized form of a non-2xx backend response. Raw response
// bodies are never surfaced to users; the backend's "detail" field is
// extracted once, here, with a generic fallback.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Unwrap lets errors.Is(err, ErrUnauthenticated) work on 401s.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// API error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

// Message returns the human-readable message for err, falling back when the
// error carries nothing useful.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
