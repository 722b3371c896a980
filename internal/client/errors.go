package client

import "errors"

var (
	// ErrDaemonNotRunning is returned when nothing listens on the API address.
	ErrDaemonNotRunning = errors.New("greendrop daemon not running")

	// ErrUnauthorized is returned when the daemon has no backend credential.
	ErrUnauthorized = errors.New("not logged in")

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("404 not found")
)
