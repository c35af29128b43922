// Drives the asynchronous page content export protocol.

package coda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Page export output formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// FileExtension returns the file extension for an export format.
func FileExtension(format string) string {
	if format == FormatMarkdown {
		return "md"
	}
	return format
}

// ExportPage runs the full submit, poll, download cycle for one page and
// format, returning the exported content. The poll loop runs at a fixed
// interval and is bounded by MaxPollAttempts; a job stuck in progress ends
// with ErrExportTimeout instead of hanging. Failures are scoped to this
// page and format.
func (c *Client) ExportPage(ctx context.Context, docID, pageID, format string) ([]byte, error) {
	submitPath := "/docs/" + docID + "/pages/" + pageID + "/export"
	data, err := c.do(ctx, http.MethodPost, submitPath, nil, map[string]string{"outputFormat": format})
	if err != nil {
		return nil, err
	}
	var job exportStatus
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("malformed export submit response for page %s: %v", pageID, err)}
	}
	slog.DebugContext(ctx, "Submitted page export", "doc", docID, "page", pageID, "format", format, "request", job.ID)

	statusPath := submitPath + "/" + job.ID
	for attempt := 0; attempt < c.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.PollInterval); err != nil {
				return nil, err
			}
		}

		data, err := c.do(ctx, http.MethodGet, statusPath, nil, nil)
		if err != nil {
			return nil, err
		}
		var status exportStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("malformed export status for page %s: %v", pageID, err)}
		}

		switch status.Status {
		case exportStatusComplete:
			if status.DownloadLink == "" {
				return nil, &ProtocolError{Message: fmt.Sprintf("export of page %s completed without a download link", pageID)}
			}
			return c.download(ctx, status.DownloadLink)
		case exportStatusFailed:
			return nil, &ExportFailedError{PageID: pageID, Format: format, Reason: status.Error}
		}
		// pending or inProgress: keep polling.
	}

	return nil, fmt.Errorf("page %s (%s): %w", pageID, format, ErrExportTimeout)
}

// download fetches a finished export artifact. Download links are
// pre-signed, so no Authorization header is sent, but the shared rate
// limiter and transient retry budget still apply.
func (c *Client) download(ctx context.Context, link string) ([]byte, error) {
	transient := 0
	var lastErr error
	for {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create download request: %w", err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr == nil && resp.StatusCode < 400 {
				return data, nil
			}
			if readErr != nil {
				err = fmt.Errorf("failed to read download: %w", readErr)
			} else {
				err = &APIError{StatusCode: resp.StatusCode}
			}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && readErr == nil {
				return nil, err
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		transient++
		if transient > c.MaxRetries {
			return nil, &TransientError{Attempts: transient, Err: lastErr}
		}
		if err := c.backoff(ctx, http.MethodGet, link, transient); err != nil {
			return nil, err
		}
	}
}
