// Package photolib talks to the platform photo library service. The service
// fronts the device photo store and exposes asset listing plus the two
// destructive operations (hide, delete) behind an explicit permission grant.
package photolib

import (
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Client represents a client for the photo library API.
type Client struct {
	parsedURL *url.URL
	token     string
}

// New creates a new photo library client. The token may be empty when the
// service runs without authentication (local development).
func New(rawURL, token string) (*Client, error) {
	apiURL := rawURL + "/api/v1"
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid photo library URL: %w", err)
	}
	return &Client{parsedURL: parsed, token: token}, nil
}

// resolveURL builds a full URL from the base API URL and the given path segments.
// If the last segment contains a query string (e.g. "assets?include_hidden=true"),
// it is split so JoinPath only receives the path portion and the query is appended.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	last := pathSegments[len(pathSegments)-1]
	if pathPart, query, ok := strings.Cut(last, "?"); ok {
		pathSegments[len(pathSegments)-1] = pathPart
		result := c.parsedURL.JoinPath(pathSegments...)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// readErrorBody reads the response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}
