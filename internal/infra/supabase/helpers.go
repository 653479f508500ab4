package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// ============================================================
// HTTP helpers shared by the PostgREST and GoTrue calls
// ============================================================

// statusError is a non-2xx PostgREST reply.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends one request. An empty token falls back to the anon key, so the
// row-level policy for anonymous callers applies.
func (c *Client) do(ctx context.Context, method, rawURL, token string, payload any, headers map[string]string) (*response, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, err
	}

	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
		return nil, &statusError{Status: resp.StatusCode, Body: string(data)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
	)
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) restURL(table domain.Table, query url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func eqFilters(filters map[string]string) url.Values {
	q := url.Values{}
	for col, v := range filters {
		q.Set(col, "eq."+v)
	}
	return q
}

// isClientError reports failures caused by the request itself. They neither
// trip the breaker nor get retried.
func isClientError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status >= 400 && se.Status < 500
	}
	var authErr *domain.ErrAuthAPI
	if errors.As(err, &authErr) {
		return authErr.Credential()
	}
	return false
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
