// Error taxonomy for the Coda API client.

package coda

import (
	"errors"
	"fmt"
)

// AuthError indicates the API token was rejected (401/403).
// It is fatal to the whole run: nothing can be exported without a valid
// credential.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
}

// APIError is a non-retryable 4xx response (malformed request, missing
// resource). Scoped to the entity being fetched.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d)", e.StatusCode)
}

// TransientError wraps a network or 5xx failure that survived the bounded
// retry budget. Scoped to the entity being fetched; siblings continue.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ProtocolError indicates the server violated the API contract, for example
// a repeating pagination cursor or a malformed response shape. Fatal to the
// enclosing traversal unit only.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// ExportFailedError is a terminal "failed" status reported by a page export
// job. Scoped to one page and format.
type ExportFailedError struct {
	PageID string
	Format string
	Reason string
}

func (e *ExportFailedError) Error() string {
	msg := fmt.Sprintf("export of page %s as %s failed", e.PageID, e.Format)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ErrExportTimeout is returned when a page export job does not reach a
// terminal state within the poll budget.
var ErrExportTimeout = errors.New("page export timed out")
