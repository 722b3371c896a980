// Package backend talks to the telemetry REST service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"greendrop/internal/logger"
	"greendrop/internal/models"
)

// ErrUnauthorized is wrapped by APIError for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client is a thin JSON-over-HTTP client for the /telemetry endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *Credentials
	log     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, creds *Credentials, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if creds == nil {
		creds = NewCredentials()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		log:     log.Named("backend"),
	}
}

type sessionRequest struct {
	DeviceID string `json:"deviceId"`
}

// OpenSession marks deviceId as streaming. Idempotent on the server.
func (c *Client) OpenSession(ctx context.Context, deviceID string) error {
	_, err := c.do(ctx, http.MethodPost, "/telemetry/open-session", sessionRequest{DeviceID: deviceID})
	return err
}

// CloseSession marks deviceId as no longer streaming.
func (c *Client) CloseSession(ctx context.Context, deviceID string) error {
	_, err := c.do(ctx, http.MethodPost, "/telemetry/close-session", sessionRequest{DeviceID: deviceID})
	return err
}

// PushTelemetry persists one irrigation record.
func (c *Client) PushTelemetry(ctx context.Context, p models.TelemetryPush) (*models.TelemetryRecord, error) {
	raw, err := c.do(ctx, http.MethodPost, "/telemetry/push", p)
	if err != nil {
		return nil, err
	}
	if isEmpty(raw) {
		return nil, nil
	}
	var rec models.TelemetryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	return &rec, nil
}

// Latest returns the newest record for deviceID, or nil when there is none.
func (c *Client) Latest(ctx context.Context, deviceID string) (*models.TelemetryRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, "/telemetry/latest/"+url.PathEscape(deviceID), nil)
	if err != nil {
		return nil, err
	}
	if isEmpty(raw) {
		return nil, nil
	}
	var rec models.TelemetryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode latest: %w", err)
	}
	return &rec, nil
}

// History returns the stored records for deviceID. Anything but a JSON array
// yields an empty slice.
func (c *Client) History(ctx context.Context, deviceID string) ([]models.TelemetryRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, "/telemetry/history/"+url.PathEscape(deviceID), nil)
	if err != nil {
		return nil, err
	}
	var recs []models.TelemetryRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return []models.TelemetryRecord{}, nil
	}
	if recs == nil {
		recs = []models.TelemetryRecord{}
	}
	return recs, nil
}

// do sends body as JSON and returns the raw response body. Unparseable
// bodies are reported as null.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token, err := c.creds.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data := readJSONSafe(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.creds.Clear()
		c.log.Warnw("credential_dropped", "path", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Code: errorCode(data, resp.StatusCode)}
	}
	return data, nil
}

func readJSONSafe(r io.Reader) json.RawMessage {
	b, err := io.ReadAll(r)
	if err != nil || len(bytes.TrimSpace(b)) == 0 || !json.Valid(b) {
		return json.RawMessage("null")
	}
	return b
}

func errorCode(data json.RawMessage, status int) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &body)
	switch {
	case body.Code != "":
		return body.Code
	case body.Message != "":
		return body.Message
	default:
		return fmt.Sprintf("HTTP %d", status)
	}
}

// isEmpty reports null and {} bodies.
func isEmpty(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return true
	}
	return len(m) == 0
}
