// Package transport implements the client side of the broker's event-stream
// protocol: an HTTP signup call plus a persistent JSON-over-websocket
// session carrying request/response calls, fire-and-forget emits, and
// server-pushed events dispatched to registered handlers.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/parley/parley/internal/idgen"
	"github.com/parley/parley/internal/metrics"
	"github.com/parley/parley/internal/msgcodec"
)

// HandlerFunc handles one inbound event. ack reports whether the delivery
// should be acknowledged; for events that carry a RequestID (the server is
// awaiting a reply, as with receive_command) reply is marshaled back to the
// broker under that RequestID.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (reply any, ack bool)

// SignupResult is the decoded response to a signup call.
type SignupResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client owns one broker session: the websocket connection, the inbound
// handler registry, and the in-flight request/response correlation table.
type Client struct {
	cfg  Config
	http *http.Client

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan Envelope
	handlers map[string]HandlerFunc
	loggedIn bool
	loginCh  chan bool // receives the current Login call's handshake result

	bindOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

// NewClient constructs a Client bound to cfg. Dialing happens in Login.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 15 * time.Second},
		pending:  make(map[string]chan Envelope),
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// On registers the handler for event. Safe to call before or after Login.
// Binding the same event a second time replaces the previous handler.
func (c *Client) On(event string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Signup registers a member with the broker via POST {BaseURL}/chat/signup.
// It is idempotent: signing up an already-registered member_id succeeds.
func (c *Client) Signup(ctx context.Context) (SignupResult, error) {
	body, err := json.Marshal(map[string]string{
		"member_id":   c.cfg.MemberID,
		"member_name": c.cfg.MemberName,
		"description": c.cfg.Description,
	})
	if err != nil {
		return SignupResult{}, fmt.Errorf("transport: marshal signup body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/signup", bytes.NewReader(body))
	if err != nil {
		return SignupResult{}, fmt.Errorf("transport: build signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SignupResult{}, fmt.Errorf("transport: signup request: %w", err)
	}
	defer resp.Body.Close()

	var out SignupResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SignupResult{}, fmt.Errorf("transport: decode signup response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return out, fmt.Errorf("transport: signup failed: %s", out.Message)
	}
	return out, nil
}

// Login dials the websocket, sends the handshake metadata, binds the
// receive-loop handlers exactly once for this client's lifetime, and blocks
// until either a successful receive_login_response arrives or
// ConnectTimeout elapses. It returns false rather than raising on failure.
// Login does not reconnect automatically; callers re-invoke it.
func (c *Client) Login(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout())
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.WSURL, nil)
	if err != nil {
		slog.Warn("transport: dial failed", "error", err)
		return false
	}

	loginCh := make(chan bool, 1)
	c.mu.Lock()
	c.conn = conn
	c.loggedIn = false
	c.loginCh = loginCh
	c.mu.Unlock()

	metrics.WSConnectionsActive.Inc()

	c.bindOnce.Do(func() {
		c.On(EventReceiveLoginResponse, func(_ context.Context, payload json.RawMessage) (any, bool) {
			var resp struct {
				Status string `json:"status"`
			}
			_ = json.Unmarshal(payload, &resp)
			success := resp.Status == "ok" || resp.Status == "success"
			c.mu.Lock()
			c.loggedIn = success
			ch := c.loginCh
			c.mu.Unlock()
			select {
			case ch <- success:
			default:
			}
			return nil, true
		})
		c.On(EventDisconnect, func(_ context.Context, _ json.RawMessage) (any, bool) {
			c.mu.Lock()
			c.loggedIn = false
			c.mu.Unlock()
			return nil, true
		})
	})

	go c.receiveLoop(conn)

	handshake, err := marshalPayload(map[string]string{
		"member_id":   c.cfg.MemberID,
		"member_name": c.cfg.MemberName,
	})
	if err != nil {
		slog.Warn("transport: marshal handshake failed", "error", err)
		return false
	}
	if err := c.writeEnvelope(ctx, Envelope{Event: EventLogin, Payload: handshake}); err != nil {
		slog.Warn("transport: handshake write failed", "error", err)
		return false
	}

	select {
	case success := <-loginCh:
		return success
	case <-time.After(c.cfg.connectTimeout()):
		slog.Warn("transport: login timed out", "timeout", c.cfg.connectTimeout())
		return false
	}
}

// Call issues a request/response call and blocks until the matching reply
// arrives or timeout elapses (0 means Config.CallTimeout). The request is
// correlated by a freshly generated request id.
func (c *Client) Call(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.callTimeout()
	}

	data, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal call payload: %w", err)
	}

	requestID := idgen.Generate()
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	start := time.Now()
	if err := c.writeEnvelope(ctx, Envelope{Event: event, RequestID: requestID, Payload: data}); err != nil {
		metrics.WSCallsTotal.WithLabelValues(event, "error").Inc()
		return nil, fmt.Errorf("transport: write call: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		metrics.WSCallsTotal.WithLabelValues(event, "ok").Inc()
		metrics.WSCallDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
		return env.Payload, nil
	case <-timer.C:
		metrics.WSCallsTotal.WithLabelValues(event, "timeout").Inc()
		return nil, fmt.Errorf("transport: call %q timed out after %s", event, timeout)
	case <-ctx.Done():
		metrics.WSCallsTotal.WithLabelValues(event, "cancelled").Inc()
		return nil, ctx.Err()
	}
}

// Emit sends a fire-and-forget event with no expected reply.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal emit payload: %w", err)
	}
	return c.writeEnvelope(ctx, Envelope{Event: event, Payload: data})
}

// Wait blocks the calling goroutine until the session ends (disconnect or
// Close).
func (c *Client) Wait() {
	<-c.done
}

// Close tears down the websocket session.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client closing")
}

// LoggedIn reports whether the session currently considers itself
// authenticated (cleared on disconnect).
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) writeEnvelope(ctx context.Context, env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: not connected")
	}

	if compressed, method := msgcodec.Compress(env.Payload); method != msgcodec.CompressionNone {
		encoded, err := json.Marshal(base64.StdEncoding.EncodeToString(compressed))
		if err != nil {
			return fmt.Errorf("transport: marshal compressed payload: %w", err)
		}
		env.Payload = encoded
		env.Compression = method
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// receiveLoop owns the single read thread for this session. It correlates
// responses to in-flight Calls and dispatches all other inbound events to
// registered handlers, spawning a fresh worker goroutine for events whose
// handling may block (message and notification receipt).
func (c *Client) receiveLoop(conn *websocket.Conn) {
	ctx := context.Background()
	defer func() {
		metrics.WSConnectionsActive.Dec()
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		c.invokeHandler(ctx, EventDisconnect, nil, "")
		c.doneOnce.Do(func() { close(c.done) })
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("transport: receive loop ended", "error", err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("transport: malformed inbound frame", "error", err)
			continue
		}
		if env.Compression != msgcodec.CompressionNone {
			var encoded string
			if err := json.Unmarshal(env.Payload, &encoded); err != nil {
				slog.Warn("transport: malformed compressed payload", "event", env.Event, "error", err)
				continue
			}
			compressed, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				slog.Warn("transport: invalid base64 payload", "event", env.Event, "error", err)
				continue
			}
			payload, err := msgcodec.Decompress(compressed, env.Compression)
			if err != nil {
				slog.Warn("transport: decompress payload failed", "event", env.Event, "error", err)
				continue
			}
			env.Payload = payload
		}

		c.mu.Lock()
		ch, isResponse := c.pending[env.RequestID]
		c.mu.Unlock()
		if isResponse && env.RequestID != "" {
			select {
			case ch <- env:
			default:
			}
			continue
		}

		if dispatchAsync(env.Event) {
			go c.invokeHandler(ctx, env.Event, env.Payload, env.RequestID)
		} else {
			c.invokeHandler(ctx, env.Event, env.Payload, env.RequestID)
		}
	}
}

func (c *Client) invokeHandler(ctx context.Context, event string, payload json.RawMessage, requestID string) {
	c.mu.Lock()
	h, ok := c.handlers[event]
	c.mu.Unlock()
	if !ok {
		slog.Debug("transport: no handler registered", "event", event)
		return
	}

	reply, _ := h(ctx, payload)
	if requestID == "" {
		return
	}
	replyData, err := marshalPayload(reply)
	if err != nil {
		slog.Warn("transport: marshal reply failed", "event", event, "error", err)
		return
	}
	if err := c.writeEnvelope(ctx, Envelope{Event: event, RequestID: requestID, Payload: replyData}); err != nil {
		slog.Warn("transport: write reply failed", "event", event, "error", err)
	}
}
