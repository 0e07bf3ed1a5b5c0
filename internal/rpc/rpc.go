// Package rpc implements a JSON-RPC 2.0 session over an
// internal/transport.Framed connection: request/response id correlation,
// per-call timeouts, and routing of server-initiated notifications.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"docweave/internal/transport"
)

// Request is an outgoing JSON-RPC request or notification. ID is omitted
// for notifications.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Notification is a server-initiated message with no id, e.g.
// window/logMessage.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Session correlates requests with responses over a Framed transport and
// fans server notifications out to Notifications.
type Session struct {
	t             *transport.Framed
	nextID        int64
	mu            sync.Mutex
	pending       map[int64]chan Response
	Notifications chan Notification

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
}

// NewSession starts a background reader goroutine over t and returns a
// ready-to-use Session. Notifications must be drained by the caller or the
// channel will eventually block the reader goroutine.
func NewSession(t *transport.Framed) *Session {
	s := &Session{
		t:             t,
		pending:       make(map[int64]chan Response),
		Notifications: make(chan Notification, 64),
		closed:        make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Session) readLoop() {
	defer close(s.Notifications)
	for {
		raw, err := s.t.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			for id, ch := range s.pending {
				close(ch)
				delete(s.pending, id)
			}
			s.mu.Unlock()
			s.closeOnce.Do(func() { close(s.closed) })
			return
		}

		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}

		if resp.ID != nil {
			s.mu.Lock()
			ch, ok := s.pending[*resp.ID]
			if ok {
				delete(s.pending, *resp.ID)
			}
			s.mu.Unlock()
			if ok {
				ch <- resp
				close(ch)
			}
			// No pending waiter: a late response to a call whose context
			// already timed out. Discard.
			continue
		}

		if resp.Method != "" {
			select {
			case s.Notifications <- Notification{Method: resp.Method, Params: resp.Params}:
			case <-s.closed:
				return
			}
		}
	}
}

// Call sends a request and blocks until a matching response arrives, ctx is
// done, or the transport closes, whichever happens first.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	ch := make(chan Response, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	payload, err := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		s.removePending(id)
		return nil, fmt.Errorf("rpc: marshal request %s: %w", method, err)
	}
	writeErr := make(chan error, 1)
	go func() { writeErr <- s.t.WriteMessage(payload) }()
	select {
	case err := <-writeErr:
		if err != nil {
			s.removePending(id)
			return nil, fmt.Errorf("rpc: send request %s: %w", method, err)
		}
	case <-ctx.Done():
		s.removePending(id)
		return nil, fmt.Errorf("rpc: %s: %w", method, ctx.Err())
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("rpc: transport closed while waiting for %s: %w", method, s.readErr)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		s.removePending(id)
		return nil, fmt.Errorf("rpc: %s: %w", method, ctx.Err())
	}
}

// CallTimeout is a convenience wrapper around Call using a fixed timeout.
func (s *Session) CallTimeout(parent context.Context, timeout time.Duration, method string, params any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return s.Call(ctx, method, params)
}

// Notify sends a fire-and-forget notification (no id, no response).
func (s *Session) Notify(method string, params any) error {
	payload, err := json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rpc: marshal notification %s: %w", method, err)
	}
	return s.t.WriteMessage(payload)
}

func (s *Session) removePending(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Closed returns a channel that is closed once the underlying transport has
// stopped producing messages.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}
