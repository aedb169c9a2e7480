// Package control is the operator surface of the gateway: the invoiceserver
// command and the admin HTTP API that exposes it.
package control

import (
	"fmt"
	"log/slog"
	"strings"
)

// Lifecycle is the subset of the listener manager the controller drives.
type Lifecycle interface {
	Start(address string, port int) error
	Stop(port int) error
	Restart(address string, port int) error
	Status(port int) bool
}

// Commands accepted by Execute.
const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandStatus  = "status"
	CommandRestart = "restart"
)

// Controller applies lifecycle commands to the configured address and port.
type Controller struct {
	lifecycle Lifecycle
	address   string
	port      int
}

// NewController creates a controller bound to one address and port.
func NewController(lifecycle Lifecycle, address string, port int) *Controller {
	return &Controller{
		lifecycle: lifecycle,
		address:   address,
		port:      port,
	}
}

// Port returns the port the controller manages.
func (c *Controller) Port() int {
	return c.port
}

// Normalize maps a raw command onto a known one. Unknown and empty commands
// become start.
func Normalize(command string) string {
	switch cmd := strings.ToLower(strings.TrimSpace(command)); cmd {
	case CommandStart, CommandStop, CommandStatus, CommandRestart:
		return cmd
	default:
		return CommandStart
	}
}

// Execute runs command and returns its human-readable outcome. Failures are
// reported in the returned text, never as an error.
func (c *Controller) Execute(command string) string {
	cmd := Normalize(command)
	result := c.execute(cmd)
	slog.Info("Lifecycle command executed", "command", cmd, "port", c.port, "result", result)
	return result
}

func (c *Controller) execute(cmd string) string {
	switch cmd {
	case CommandStop:
		if err := c.lifecycle.Stop(c.port); err != nil {
			return fmt.Sprintf("Could not stop server on port %d: %v", c.port, err)
		}
		return fmt.Sprintf("Invoice server stopped on port %d", c.port)

	case CommandStatus:
		if c.lifecycle.Status(c.port) {
			return fmt.Sprintf("Invoice server active on port %d", c.port)
		}
		return "Invoice server not active."

	case CommandRestart:
		if err := c.lifecycle.Restart(c.address, c.port); err != nil {
			return fmt.Sprintf("Could not restart server on port %d: %v", c.port, err)
		}
		return "Invoice server restarted"

	default:
		if err := c.lifecycle.Start(c.address, c.port); err != nil {
			return fmt.Sprintf("Error starting server on port %d: %v", c.port, err)
		}
		return fmt.Sprintf("Invoice server started successfully on port %d", c.port)
	}
}

// Running reports whether the managed port currently has a listener.
func (c *Controller) Running() bool {
	return c.lifecycle.Status(c.port)
}
