package node

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requestinvoice/internal/models"
)

// fakeNode answers JSON-RPC requests on a unix socket with a canned handler.
type fakeNode struct {
	listener net.Listener
	path     string

	mu       sync.Mutex
	requests []map[string]interface{}
}

func startFakeNode(t *testing.T, handle func(req map[string]interface{}) interface{}) *fakeNode {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lightning-rpc")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	node := &fakeNode{listener: ln, path: path}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				var req map[string]interface{}
				if err := json.NewDecoder(conn).Decode(&req); err != nil {
					return
				}
				node.mu.Lock()
				node.requests = append(node.requests, req)
				node.mu.Unlock()

				resp := handle(req)
				if resp == nil {
					return
				}
				json.NewEncoder(conn).Encode(resp)
			}(conn)
		}
	}()

	return node
}

func (n *fakeNode) lastRequest() map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return nil
	}
	return n.requests[len(n.requests)-1]
}

func TestClient_Invoice_Success(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result": map[string]interface{}{
				"bolt11":         "lnbc50n1ptest",
				"payment_hash":   "abc123",
				"payment_secret": "def456",
				"expires_at":     1767873600,
				"created_index":  7,
			},
		}
	})

	client := NewClient(node.path, 5*time.Second)
	inv, err := client.Invoice(context.Background(), models.InvoiceRequest{
		AmountMsat:  5000,
		Label:       "ln-getinvoice-test",
		Description: "coffee",
	})

	require.NoError(t, err)
	assert.Equal(t, "lnbc50n1ptest", inv.Bolt11)
	assert.Equal(t, "abc123", inv.PaymentHash)
	assert.Equal(t, int64(1767873600), inv.ExpiresAt)
	assert.Equal(t, uint64(7), inv.CreatedIndex)

	req := node.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "2.0", req["jsonrpc"])
	assert.Equal(t, "invoice", req["method"])
	params, ok := req["params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5000), params["amount_msat"])
	assert.Equal(t, "ln-getinvoice-test", params["label"])
	assert.Equal(t, "coffee", params["description"])
}

func TestClient_Invoice_RPCError(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"error": map[string]interface{}{
				"code":    900,
				"message": "Duplicate label",
			},
		}
	})

	client := NewClient(node.path, 5*time.Second)
	_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "dup"})

	require.Error(t, err)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, 900, rpcErr.Code)
	assert.Equal(t, "Duplicate label", rpcErr.Message)
}

func TestClient_Invoice_EmptyResponse(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return nil
	})

	client := NewClient(node.path, 5*time.Second)
	_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "x"})

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_Invoice_MismatchedID(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return map[string]interface{}{"jsonrpc": "2.0", "id": 9999, "result": map[string]interface{}{}}
	})

	client := NewClient(node.path, 5*time.Second)
	_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestClient_Invoice_SocketMissing(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing-rpc"), time.Second)
	_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to node")
}

func TestClient_Invoice_Timeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		<-release
		return nil
	})

	client := NewClient(node.path, 50*time.Millisecond)
	start := time.Now()
	_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Invoice_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		<-release
		return nil
	})

	client := NewClient(node.path, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Invoice(ctx, models.InvoiceRequest{AmountMsat: 1, Label: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ConcurrentCalls(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  map[string]interface{}{"bolt11": "lnbc1"},
		}
	})
	client := NewClient(node.path, 5*time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1, Label: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClient_Invoice_PreservesUnknownFields(t *testing.T) {
	node := startFakeNode(t, func(req map[string]interface{}) interface{} {
		return map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result": map[string]interface{}{
				"bolt11":       "lnbc1",
				"payment_hash": "h",
				"expires_at":   1,
				"future_field": "x",
			},
		}
	})

	client := NewClient(node.path, 5*time.Second)
	inv, err := client.Invoice(context.Background(), models.InvoiceRequest{AmountMsat: 1000, Label: "x"})
	require.NoError(t, err)

	data, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bolt11":"lnbc1","payment_hash":"h","expires_at":1,"future_field":"x"}`, string(data))
}
