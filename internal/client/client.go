// Package client talks to the local greendrop API on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"greendrop/internal/logger"

	pkgerrors "github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Client is a struct for communicating with the greendrop daemon
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient is a constructor for creating a new Client. A non-empty token is
// sent as a bearer header and cached by the daemon.
func NewClient(baseURL, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.Named("client"),
	}
}

// errorBody is the error shape every handler returns.
type errorBody struct {
	Error string `json:"error"`
}

// Send issues one request. in is encoded as JSON when non-nil; the response
// is decoded into out when non-nil.
func (c *Client) Send(ctx context.Context, method, path string, in, out any) error {
	c.log.Debugw("sending_request", "method", method, "path", path)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return ErrDaemonNotRunning
		}
		return pkgerrors.Wrap(err, "failed to send request")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warnw("close_response_body_failed", "err", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read response body")
	}
	c.log.Debugw("got_response", "code", resp.StatusCode, "body", string(b))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(b))
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return pkgerrors.Wrap(ErrUnauthorized, msg)
		case http.StatusNotFound:
			return pkgerrors.Wrap(ErrNotFound, path)
		}
		return fmt.Errorf("got %d: %s", resp.StatusCode, msg)
	}

	if out == nil || len(b) == 0 {
		return nil
	}
	return pkgerrors.Wrap(json.Unmarshal(b, out), "failed to decode response")
}

// Get is a method for sending a GET request to the daemon
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Send(ctx, http.MethodGet, path, nil, out)
}

// Post is a method for sending a POST request to the daemon
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Send(ctx, http.MethodPost, path, in, out)
}

// Delete is a method for sending a DELETE request to the daemon
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Send(ctx, http.MethodDelete, path, nil, out)
}
