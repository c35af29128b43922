// Implements the Coda API client with rate limiting and bounded retries.

package coda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Coda API v1 root.
	DefaultBaseURL = "https://coda.io/apis/v1"
	// defaultRequestInterval paces requests below Coda's published limits.
	defaultRequestInterval = 120 * time.Millisecond
)

// Client is a rate-limited, read-only Coda API client. The rate limiter is
// shared across all goroutines using the client so concurrent doc exports do
// not amplify throttling.
type Client struct {
	// BaseURL is the API root. Overridable for tests.
	BaseURL string
	// HTTPClient performs all requests.
	HTTPClient *http.Client
	// Limiter paces every outgoing request, including retries and downloads.
	Limiter *rate.Limiter
	// MaxRetries bounds transient-failure (network/5xx) retries per request.
	MaxRetries int
	// RetryBackoff is the base backoff, doubled on each transient retry.
	RetryBackoff time.Duration
	// MaxRateLimitWaits bounds how many 429 responses a single request will
	// absorb before giving up.
	MaxRateLimitWaits int
	// DefaultRetryAfter is the wait applied to a 429 response that carries no
	// usable Retry-After header.
	DefaultRetryAfter time.Duration
	// PollInterval and MaxPollAttempts bound the page export poll loop.
	PollInterval    time.Duration
	MaxPollAttempts int

	token string
}

// NewClient creates a Coda API client for the given token.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Limiter:           rate.NewLimiter(rate.Every(defaultRequestInterval), 1),
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		MaxRateLimitWaits: 10,
		DefaultRetryAfter: 60 * time.Second,
		PollInterval:      3 * time.Second,
		MaxPollAttempts:   40,
		token:             token,
	}
}

// do performs a request against the API with rate limiting, throttling
// backoff, and bounded transient retries. The returned body is the raw
// response payload.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	transient := 0
	throttled := 0
	var lastErr error
	for {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			transient++
			if transient > c.MaxRetries {
				return nil, &TransientError{Attempts: transient, Err: lastErr}
			}
			if err := c.backoff(ctx, method, path, transient); err != nil {
				return nil, err
			}
			continue
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			transient++
			if transient > c.MaxRetries {
				return nil, &TransientError{Attempts: transient, Err: lastErr}
			}
			if err := c.backoff(ctx, method, path, transient); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{StatusCode: resp.StatusCode, Message: apiMessage(data)}
		case resp.StatusCode == http.StatusTooManyRequests:
			throttled++
			if throttled > c.MaxRateLimitWaits {
				return nil, &TransientError{Attempts: throttled, Err: fmt.Errorf("still rate limited after %d waits", throttled)}
			}
			wait := retryAfter(resp.Header, c.DefaultRetryAfter)
			slog.WarnContext(ctx, "Rate limited, waiting", "method", method, "path", path, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: apiMessage(data)}
			transient++
			if transient > c.MaxRetries {
				return nil, &TransientError{Attempts: transient, Err: lastErr}
			}
			if err := c.backoff(ctx, method, path, transient); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= 400:
			return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(data)}
		}

		return data, nil
	}
}

// backoff sleeps for an exponentially growing duration before retry attempt.
func (c *Client) backoff(ctx context.Context, method, path string, attempt int) error {
	wait := c.RetryBackoff << (attempt - 1)
	slog.DebugContext(ctx, "Retrying request", "method", method, "path", path, "attempt", attempt, "backoff", wait)
	return sleepCtx(ctx, wait)
}

// apiMessage extracts the server's error message from a JSON error body.
func apiMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}

// retryAfter parses the Retry-After header, falling back to def.
func retryAfter(h http.Header, def time.Duration) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WhoAmI validates the credential and returns the token's identity.
func (c *Client) WhoAmI(ctx context.Context) (*UserInfo, error) {
	data, err := c.do(ctx, http.MethodGet, "/whoami", nil, nil)
	if err != nil {
		return nil, err
	}
	var user UserInfo
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed whoami response: %v", err)}
	}
	return &user, nil
}

// ListDocs lists every doc visible to the token, exhausting pagination.
func (c *Client) ListDocs(ctx context.Context) ([]Doc, error) {
	return collectAll[Doc](ctx, c, "/docs", nil)
}

// GetDoc retrieves full metadata for one doc.
func (c *Client) GetDoc(ctx context.Context, docID string) (*Doc, error) {
	data, err := c.do(ctx, http.MethodGet, "/docs/"+docID, nil, nil)
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed doc response for %s: %v", docID, err)}
	}
	return &doc, nil
}

// ListPages lists all pages in a doc.
func (c *Client) ListPages(ctx context.Context, docID string) ([]Page, error) {
	return collectAll[Page](ctx, c, "/docs/"+docID+"/pages", nil)
}

// ListTables lists all tables and views in a doc. Callers discriminate on
// TableType.
func (c *Client) ListTables(ctx context.Context, docID string) ([]Table, error) {
	return collectAll[Table](ctx, c, "/docs/"+docID+"/tables", nil)
}

// GetTable retrieves detailed metadata for a table or view.
func (c *Client) GetTable(ctx context.Context, docID, tableID string) (*Table, error) {
	data, err := c.do(ctx, http.MethodGet, "/docs/"+docID+"/tables/"+tableID, nil, nil)
	if err != nil {
		return nil, err
	}
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed table response for %s: %v", tableID, err)}
	}
	return &table, nil
}

// ListColumns lists all columns of a table. The listing returns basic
// column objects only; formulas, default values, and full formats require
// GetColumn.
func (c *Client) ListColumns(ctx context.Context, docID, tableID string) ([]Column, error) {
	return collectAll[Column](ctx, c, "/docs/"+docID+"/tables/"+tableID+"/columns", nil)
}

// GetColumn retrieves detailed metadata for one column.
func (c *Client) GetColumn(ctx context.Context, docID, tableID, columnID string) (*Column, error) {
	data, err := c.do(ctx, http.MethodGet, "/docs/"+docID+"/tables/"+tableID+"/columns/"+columnID, nil, nil)
	if err != nil {
		return nil, err
	}
	var column Column
	if err := json.Unmarshal(data, &column); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed column response for %s: %v", columnID, err)}
	}
	return &column, nil
}

// ListRows lists all rows of a table. Values are always requested in rich
// mode so reference cells keep their row ids instead of flattened text.
func (c *Client) ListRows(ctx context.Context, docID, tableID string) ([]Row, error) {
	query := url.Values{}
	query.Set("valueFormat", "rich")
	return collectAll[Row](ctx, c, "/docs/"+docID+"/tables/"+tableID+"/rows", query)
}
