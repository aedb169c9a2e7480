package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	// ErrAlreadyRunning is returned when a listener is already registered on the port.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNotRunning is returned when no listener is registered on the port.
	ErrNotRunning = errors.New("no server listening")
)

// BindError reports that the port could not be bound. The registry is left
// without an entry for the port.
type BindError struct {
	Address string
	Port    int
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", net.JoinHostPort(e.Address, strconv.Itoa(e.Port)), e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
