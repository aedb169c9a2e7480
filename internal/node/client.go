// Package node talks to the Lightning node that mints invoices. The node
// exposes JSON-RPC 2.0 on a unix socket (Core Lightning's lightning-rpc).
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"requestinvoice/internal/models"
)

// ErrEmptyResponse is returned when the node closes the connection without
// sending a result.
var ErrEmptyResponse = errors.New("node returned an empty response")

// RPCError is an error reported by the node itself, as opposed to a transport
// failure reaching it.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type invoiceParams struct {
	AmountMsat  uint64 `json:"amount_msat"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Client issues RPCs against the node socket. Each call dials a fresh
// connection, so a Client is safe for concurrent use.
type Client struct {
	socketPath string
	timeout    time.Duration
	nextID     atomic.Uint64
	dialer     net.Dialer
}

// NewClient creates a client for the unix socket at socketPath. Calls that
// carry no earlier context deadline are bounded by timeout.
func NewClient(socketPath string, timeout time.Duration) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Invoice creates an invoice on the node.
func (c *Client) Invoice(ctx context.Context, req models.InvoiceRequest) (*models.Invoice, error) {
	var inv models.Invoice
	params := invoiceParams{
		AmountMsat:  req.AmountMsat,
		Label:       req.Label,
		Description: req.Description,
	}
	if err := c.Call(ctx, "invoice", params, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Call invokes method with params and decodes the result into out.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to node at %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	// Unblock pending I/O if the caller goes away before the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	id := c.nextID.Add(1)
	if err := json.NewEncoder(conn).Encode(request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return c.wrapIOError(ctx, method, err)
	}

	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", method, ErrEmptyResponse)
		}
		return c.wrapIOError(ctx, method, err)
	}

	if resp.ID != id {
		return fmt.Errorf("%s: response id %d does not match request id %d", method, resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s: %w", method, ErrEmptyResponse)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) wrapIOError(ctx context.Context, method string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", method, ctxErr)
	}
	// The socket deadline can fire a moment before the context notices.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%s: %w: %v", method, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}
