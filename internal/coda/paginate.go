// Cursor pagination over listing endpoints.

package coda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// collectAll walks a cursor-paginated listing endpoint until the server
// stops returning a continuation token. Server ordering is preserved and
// every item appears exactly once; retries inside the client do not skip or
// duplicate pages because the cursor only advances on a successful response.
// A repeating cursor is treated as a protocol error to guarantee
// termination.
func collectAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var items []T
	seen := make(map[string]bool)
	token := ""
	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		if token != "" {
			q.Set("pageToken", token)
		}

		data, err := c.do(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}

		var page listPage[T]
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("malformed listing page for %s: %v", path, err)}
		}
		items = append(items, page.Items...)

		if page.NextPageToken == "" {
			return items, nil
		}
		if seen[page.NextPageToken] {
			return nil, &ProtocolError{Message: fmt.Sprintf("repeating pagination cursor %q for %s", page.NextPageToken, path)}
		}
		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}
}
