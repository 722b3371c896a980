package client

import (
	"context"
	"net/url"

	"greendrop/internal/models"
	"greendrop/internal/service"
	"greendrop/internal/session"
	"greendrop/internal/timer"

	pkgerrors "github.com/pkg/errors"
)

// StatusReply is returned by action endpoints.
type StatusReply struct {
	Status string        `json:"status"`
	State  *timer.Status `json:"state,omitempty"`
}

// HistoryReply is the body of GET /api/v1/device/history.
type HistoryReply struct {
	Count int                 `json:"count"`
	Rows  []models.HistoryRow `json:"rows"`
}

func (c *Client) Login(ctx context.Context, token string) error {
	var out StatusReply
	return pkgerrors.Wrap(c.Post(ctx, "/auth/token", map[string]string{"token": token}, &out), "failed to log in")
}

func (c *Client) Logout(ctx context.Context) error {
	return pkgerrors.Wrap(c.Delete(ctx, "/auth/token", nil), "failed to log out")
}

func (c *Client) Scan(ctx context.Context) (*service.ScanResult, error) {
	var out service.ScanResult
	if err := c.Post(ctx, "/api/v1/device/scan", nil, &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to scan")
	}
	return &out, nil
}

func (c *Client) Connect(ctx context.Context, id string) (*session.Result, error) {
	var out session.Result
	if err := c.Post(ctx, "/api/v1/device/connect", map[string]string{"id": id}, &out); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to %s", id)
	}
	return &out, nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	return pkgerrors.Wrap(c.Post(ctx, "/api/v1/device/disconnect", nil, nil), "failed to disconnect")
}

func (c *Client) Device(ctx context.Context) (*session.Snapshot, error) {
	var out session.Snapshot
	if err := c.Get(ctx, "/api/v1/device", &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get device state")
	}
	return &out, nil
}

func (c *Client) Telemetry(ctx context.Context, deviceID string) (*service.TelemetryView, error) {
	var out service.TelemetryView
	if err := c.Get(ctx, "/api/v1/device/telemetry"+deviceQuery(deviceID), &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get telemetry")
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, deviceID string) ([]models.HistoryRow, error) {
	var out HistoryReply
	if err := c.Get(ctx, "/api/v1/device/history"+deviceQuery(deviceID), &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get history")
	}
	return out.Rows, nil
}

func (c *Client) Irrigate(ctx context.Context, p service.StartParams) (*StatusReply, error) {
	var out StatusReply
	if err := c.Post(ctx, "/api/v1/irrigation/start", p, &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to start irrigation")
	}
	return &out, nil
}

func (c *Client) Stop(ctx context.Context) (*StatusReply, error) {
	var out StatusReply
	if err := c.Post(ctx, "/api/v1/irrigation/stop", nil, &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to stop irrigation")
	}
	return &out, nil
}

func (c *Client) Timer(ctx context.Context) (*timer.Status, error) {
	var out timer.Status
	if err := c.Get(ctx, "/api/v1/irrigation/state", &out); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get irrigation state")
	}
	return &out, nil
}

func deviceQuery(id string) string {
	if id == "" {
		return ""
	}
	return "?device_id=" + url.QueryEscape(id)
}
