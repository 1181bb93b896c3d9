// Package msgchan is a typed request/response channel between the
// capture context and consumers that may run elsewhere. Each request
// carries a correlation ID; the caller blocks on a completion delivered
// by whatever transport carries the reply. The channel itself is
// transport-agnostic.
package msgchan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeGetRequestBody asks the capture context for the pending body of a
// URL.
const TypeGetRequestBody = "GET_REQUEST_BODY"

// Request is a message sent toward the capture context.
type Request struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	URL  string `json:"url,omitempty"`
}

// Response answers a Request with the same correlation ID.
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Body    string `json:"body,omitempty"`
	Method  string `json:"method,omitempty"`
}

// Transport carries an encoded request toward the responder. Replies
// come back through Channel.Deliver.
type Transport interface {
	Send(req Request) error
}

// Handler answers requests on the responder side of a transport.
type Handler interface {
	Handle(req Request) Response
}

const defaultCallTimeout = 10 * time.Second

// Channel issues requests and matches responses by correlation ID.
type Channel struct {
	transport Transport
	timeout   time.Duration

	pendingMu sync.Mutex
	pending   map[string]chan Response
}

// New creates a Channel over the given transport. A non-positive
// timeout uses the default.
func New(transport Transport, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Channel{
		transport: transport,
		timeout:   timeout,
		pending:   make(map[string]chan Response),
	}
}

// Call sends a request and waits for its response. A transport error,
// context cancellation or timeout is returned as an error; the caller
// decides whether that is fatal.
func (c *Channel) Call(ctx context.Context, req Request) (Response, error) {
	req.ID = uuid.NewString()

	ch := make(chan Response, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.deletePending(req.ID)
		return Response{}, fmt.Errorf("msgchan: send %s: %w", req.Type, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		c.deletePending(req.ID)
		return Response{}, fmt.Errorf("msgchan: %s timed out after %s", req.Type, c.timeout)
	case <-ctx.Done():
		c.deletePending(req.ID)
		return Response{}, ctx.Err()
	}
}

// Deliver routes a response to the waiting caller. Responses with an
// unknown or already-completed correlation ID are dropped.
func (c *Channel) Deliver(resp Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- resp
	}
}

func (c *Channel) deletePending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Pipe wires a Channel directly to a Handler running in the same
// process. Requests are handled on their own goroutine so the calling
// side still goes through the full correlation path.
func Pipe(handler Handler, timeout time.Duration) *Channel {
	t := &pipeTransport{handler: handler}
	ch := New(t, timeout)
	t.channel = ch
	return ch
}

type pipeTransport struct {
	handler Handler
	channel *Channel
}

func (t *pipeTransport) Send(req Request) error {
	go func() {
		t.channel.Deliver(t.handler.Handle(req))
	}()
	return nil
}
