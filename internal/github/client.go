// Package github is the gateway to the GitHub REST and GraphQL APIs. Every
// operation classifies its outcome into the domain Result/Failure vocabulary;
// raw transport errors never escape this package.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ghnotify/internal/result"
)

const (
	restRoot        = "https://api.github.com"
	graphqlEndpoint = restRoot + "/graphql"

	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"

	maxBodySize = 10 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies the GitHub token. An empty token with a nil error
// means no token is configured.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client issues authenticated calls against the GitHub API.
type Client struct {
	client HTTPClient
	auth   TokenProvider
	log    *slog.Logger
}

// NewClient creates a Client with a default HTTP client.
func NewClient(auth TokenProvider, log *slog.Logger) *Client {
	return NewClientWith(&http.Client{Timeout: 30 * time.Second}, auth, log)
}

// NewClientWith creates a Client with a custom HTTP client (useful for testing).
func NewClientWith(client HTTPClient, auth TokenProvider, log *slog.Logger) *Client {
	return &Client{client: client, auth: auth, log: log}
}

// ListNotifications fetches the notification list. With includeRead, already
// read notifications are included. The raw JSON body is returned on success.
func (c *Client) ListNotifications(ctx context.Context, includeRead bool) result.Result[[]byte] {
	url := restRoot + "/notifications"
	if includeRead {
		url += "?all=true"
	}

	token, res := c.token(ctx, "list_notifications")
	if !res.IsOk() {
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result.Err[[]byte](result.NetworkFailure(err))
	}
	c.setRESTHeaders(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return result.Err[[]byte](c.transportFailure("list_notifications", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if failure := c.classifyREST("list_notifications", resp); failure != nil {
		return result.Err[[]byte](failure)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.log.Error("read notifications body", "error", err)
		return result.Err[[]byte](result.NetworkFailure(err))
	}

	c.log.Info("fetched notifications", "bytes", len(body), "include_read", includeRead)
	return result.Ok(body)
}

// MarkThreadDone marks a notification thread as done. GitHub answers this
// PATCH with 205 Reset Content, which counts as success alongside any 2xx.
func (c *Client) MarkThreadDone(ctx context.Context, threadID string) result.Result[struct{}] {
	token, res := c.token(ctx, "mark_thread_done")
	if !res.IsOk() {
		return result.Err[struct{}](res.Failure())
	}

	url := restRoot + "/notifications/threads/" + threadID
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, nil)
	if err != nil {
		return result.Err[struct{}](result.NetworkFailure(err))
	}
	c.setRESTHeaders(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return result.Err[struct{}](c.transportFailure("mark_thread_done", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusResetContent {
		return result.Ok(struct{}{})
	}
	if failure := c.classifyREST("mark_thread_done", resp); failure != nil {
		return result.Err[struct{}](failure)
	}
	return result.Ok(struct{}{})
}

// GraphQL executes a query or mutation and returns the data payload. A 2xx
// response carrying a non-empty errors array is a failure even when partial
// data is present; callers never see partially successful payloads.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) result.Result[json.RawMessage] {
	token, res := c.token(ctx, "graphql")
	if !res.IsOk() {
		return result.Err[json.RawMessage](res.Failure())
	}

	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return result.Err[json.RawMessage](&result.Failure{
			Code:    result.CodeInvalid,
			Message: "Failed to encode GraphQL request",
			Cause:   err,
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlEndpoint, bytes.NewReader(payload))
	if err != nil {
		return result.Err[json.RawMessage](result.NetworkFailure(err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return result.Err[json.RawMessage](c.transportFailure("graphql", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.log.Error("graphql: invalid token", "status", resp.StatusCode)
			return result.Err[json.RawMessage](result.AuthFailure("Invalid GitHub token"))
		case http.StatusTooManyRequests:
			failure := rateLimited(resp)
			c.log.Error("graphql: rate limited", "reset_at", failure.Meta["resetAt"])
			return result.Err[json.RawMessage](failure)
		default:
			c.log.Error("graphql: api error", "status", resp.StatusCode)
			return result.Err[json.RawMessage](result.FailureFromStatus(resp.StatusCode,
				fmt.Sprintf("GitHub GraphQL API error: %d", resp.StatusCode), nil))
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.log.Error("read graphql body", "error", err)
		return result.Err[json.RawMessage](result.NetworkFailure(err))
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		c.log.Error("decode graphql body", "error", err)
		return result.Err[json.RawMessage](result.FailureFromStatus(resp.StatusCode,
			"GitHub GraphQL API returned malformed JSON", nil))
	}

	if len(body.Errors) > 0 {
		messages := make([]string, len(body.Errors))
		for i, e := range body.Errors {
			messages[i] = e.Message
		}
		joined := strings.Join(messages, "; ")
		c.log.Error("graphql: errors in response", "errors", joined)
		return result.Err[json.RawMessage](&result.Failure{
			Code:    result.CodeUpstream,
			Message: "GraphQL error: " + joined,
		})
	}

	return result.Ok(body.Data)
}

// token resolves the token, failing with AUTH and making zero network calls
// when none is configured.
func (c *Client) token(ctx context.Context, op string) (string, result.Result[[]byte]) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		c.log.Error(op+": resolve token", "error", err)
		return "", result.Err[[]byte](result.AuthFailure(""))
	}
	if token == "" {
		c.log.Error(op + ": no token configured")
		return "", result.Err[[]byte](result.AuthFailure(""))
	}
	return token, result.Ok[[]byte](nil)
}

func (c *Client) setRESTHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

// classifyREST maps a non-success REST response to a Failure, or nil for 2xx.
func (c *Client) classifyREST(op string, resp *http.Response) *result.Failure {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.log.Error(op+": invalid token", "status", resp.StatusCode)
		return result.AuthFailure("Invalid GitHub token")
	case http.StatusForbidden:
		c.log.Error(op+": forbidden", "status", resp.StatusCode)
		return &result.Failure{
			Code:    result.CodeForbidden,
			Message: "Access forbidden. Check token permissions.",
		}
	case http.StatusTooManyRequests:
		failure := rateLimited(resp)
		c.log.Error(op+": rate limited", "reset_at", failure.Meta["resetAt"])
		return failure
	default:
		c.log.Error(op+": api error", "status", resp.StatusCode)
		return result.FailureFromStatus(resp.StatusCode,
			fmt.Sprintf("GitHub API error: %d", resp.StatusCode), nil)
	}
}

// transportFailure classifies an error from the HTTP client itself.
func (c *Client) transportFailure(op string, err error) *result.Failure {
	if errors.Is(err, context.Canceled) {
		c.log.Error(op+": cancelled", "error", err)
		return result.CancelledFailure(err)
	}
	c.log.Error(op+": network error", "error", err)
	return result.NetworkFailure(err)
}

// rateLimited builds a RATE_LIMIT failure, converting the X-RateLimit-Reset
// epoch-seconds header to ISO-8601 when present.
func rateLimited(resp *http.Response) *result.Failure {
	resetAt := ""
	if raw := resp.Header.Get("X-RateLimit-Reset"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			resetAt = time.Unix(epoch, 0).UTC().Format(time.RFC3339)
		}
	}
	return result.RateLimitFailure(resetAt)
}
