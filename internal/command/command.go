// Package command sends control tokens to the connected valve.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"greendrop/internal/logger"
)

// Commands understood by the valve firmware.
const (
	CmdRead          = "READ"
	CmdIrrigationOn  = "IRR_ON"
	CmdIrrigationOff = "IRR_OFF"
)

// ErrNoChannel is returned when no write-capable link is attached.
var ErrNoChannel = errors.New("no command channel")

// Writer is the write side of the peripheral's characteristic.
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// Channel holds at most one writer. It is safe for concurrent use.
type Channel struct {
	mu  sync.RWMutex
	w   Writer
	log *logger.Logger
}

func NewChannel(log *logger.Logger) *Channel {
	if log == nil {
		log = logger.Nop()
	}
	return &Channel{log: log.Named("command")}
}

// Set attaches the writer of a freshly connected device.
func (c *Channel) Set(w Writer) {
	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
}

// Clear detaches the writer.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.w = nil
	c.mu.Unlock()
}

// Ready reports whether a writer is attached.
func (c *Channel) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w != nil
}

// Send writes cmd as UTF-8 bytes. No retry; transport errors are returned
// to the caller.
func (c *Channel) Send(ctx context.Context, cmd string) error {
	c.mu.RLock()
	w := c.w
	c.mu.RUnlock()

	if w == nil {
		c.log.Warnw("command_dropped", "cmd", cmd, "err", ErrNoChannel)
		return ErrNoChannel
	}
	if err := w.Write(ctx, []byte(cmd)); err != nil {
		c.log.Errorw("command_write", "cmd", cmd, "err", err)
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	c.log.Debugw("command_sent", "cmd", cmd)
	return nil
}
