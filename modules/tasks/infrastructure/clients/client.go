// Package clients holds the HTTP clients for the collaborating services:
// task configuration, case data, role assignments and the workflow
// engine. All of them share the JSON transport in baseClient.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// TokenSource supplies the bearer token attached to outgoing requests.
// It is consulted per request so rotated credentials take effect without
// a restart.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token forever. Useful for local
// development and tests.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

type baseClient struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

func newBaseClient(rawURL string, timeout time.Duration, tokens TokenSource) (*baseClient, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &baseClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}, nil
}

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

func (c *baseClient) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "http do")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "unmarshal response")
	}
	return nil
}
