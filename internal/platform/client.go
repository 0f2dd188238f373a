// Package platform is the HTTP client for the dating platform's REST API.
// The desk only reads rosters and deletes records through it.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentdesk/internal/model"
)

// Client is a minimal platform API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, bearerToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     timeout,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform error: status=%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("platform error: status=%d body=%s", e.StatusCode, e.Body)
}

// NotFound reports whether the platform answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// wireRecord accepts the handful of shapes the platform uses for roster rows:
// agents carry "name", escort profiles carry "display_name".
type wireRecord struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Username    string          `json:"username"`
}

// List returns every record of a roster resource (e.g. "agents").
func (c *Client) List(ctx context.Context, resource string) ([]model.Record, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, resourcePath(resource), nil, &raw); err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}

	rows, err := unwrapItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", resource, err)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		record, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", resource, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, resource string, id string) (model.Record, error) {
	var raw json.RawMessage
	endpoint := resourcePath(resource) + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return model.Record{}, fmt.Errorf("get %s/%s: %w", resource, id, err)
	}

	if inner, ok := unwrapData(raw); ok {
		raw = inner
	}
	return decodeRecord(raw)
}

// Delete removes a record permanently. This is the irreversible step of a deletion.
// A 404 matches model.ErrAlreadyGone.
func (c *Client) Delete(ctx context.Context, resource string, id string) error {
	endpoint := resourcePath(resource) + "/" + url.PathEscape(id)
	err := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return fmt.Errorf("delete %s/%s: %w: %w", resource, id, model.ErrAlreadyGone, err)
	}
	return fmt.Errorf("delete %s/%s: %w", resource, id, err)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(b), Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func resourcePath(resource string) string {
	return url.PathEscape(strings.Trim(resource, "/"))
}

// unwrapItems accepts a bare array, {"items": [...]}, {"data": [...]} or
// {"data": {"items": [...]}}.
func unwrapItems(raw json.RawMessage) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var wrapped struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}

	if inner, ok := unwrapData(raw); ok {
		return unwrapItems(inner)
	}

	return nil, errors.New("unexpected list payload")
}

func unwrapData(raw json.RawMessage) (json.RawMessage, bool) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
		return nil, false
	}
	return envelope.Data, true
}

func decodeRecord(raw json.RawMessage) (model.Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.Record{}, err
	}

	id, err := decodeID(wire.ID)
	if err != nil {
		return model.Record{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Record{}, err
	}
	delete(fields, "id")

	name := wire.Name
	if name == "" {
		name = wire.DisplayName
	}
	if name == "" {
		name = wire.Username
	}

	return model.Record{ID: id, Name: name, Fields: fields}, nil
}

// decodeID accepts string and numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("record without id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", errors.New("record without id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported id %s", string(raw))
}

func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	switch v := parsed.Error.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return ""
}
