package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ssod/cmd/internal/ids"

	"github.com/coder/websocket"
)

// ErrClientClosed is returned by calls on a closed or disconnected Client.
var ErrClientClosed = errors.New("rpc: client closed")

// FrameError is an error frame returned by the gateway for a call.
type FrameError struct {
	Code    string
	Message string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Code, e.Message)
}

// CallResult collects the frames the gateway sent for one call.
type CallResult struct {
	// Result is set for asynchronous methods.
	Result *ResultPayload
	// Account is the account frame that follows a successful result carrying an account.
	Account *AccountPayload
	// Reply is set for get_active_account and get_all_accounts.
	Reply *ReplyPayload
}

// DialOptions tunes Dial. Zero values use defaults.
type DialOptions struct {
	Origin     string
	HTTPClient *http.Client
}

// Client is a single-connection gateway client. It is safe for concurrent calls.
type Client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan Envelope
	err     error

	done chan struct{}
}

// Dial connects to a gateway at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts *DialOptions) (*Client, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, fmt.Errorf("rpc: invalid url: %w", err)
	}
	if opts == nil {
		opts = &DialOptions{}
	}

	h := http.Header{}
	if strings.TrimSpace(opts.Origin) != "" {
		h.Set("Origin", opts.Origin)
	}

	conn, resp, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader:   h,
		HTTPClient:   opts.HTTPClient,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("rpc: dial: %w", err)
	}
	if sp := conn.Subprotocol(); sp != Subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return nil, fmt.Errorf("rpc: subprotocol mismatch: got=%q want=%q", sp, Subprotocol)
	}
	conn.SetReadLimit(maxFrameBytes)

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the connection and fails pending calls.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	return err
}

// Call invokes method with payload (nil for none) and waits for its frames.
func (c *Client) Call(ctx context.Context, method string, payload any) (CallResult, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return CallResult{}, fmt.Errorf("rpc: encode payload: %w", err)
		}
		raw = b
	}

	id := ids.MustULID()
	frames := make(chan Envelope, 2)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return CallResult{}, err
	}
	c.pending[id] = frames
	c.mu.Unlock()
	defer c.forget(id)

	env := Envelope{V: Version, Type: TypeCall, ID: id, TS: time.Now().UTC(), Method: method, Payload: raw}
	b, err := json.Marshal(env)
	if err != nil {
		return CallResult{}, err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return CallResult{}, fmt.Errorf("rpc: write: %w", err)
	}

	var out CallResult
	for {
		var f Envelope
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case f = <-frames:
		case <-c.done:
			return out, c.closedErr()
		}

		switch f.Type {
		case TypeError:
			var p ErrorPayload
			_ = json.Unmarshal(f.Payload, &p)
			return out, &FrameError{Code: p.Code, Message: p.Message}

		case TypeReply:
			var p ReplyPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return out, fmt.Errorf("rpc: decode reply: %w", err)
			}
			out.Reply = &p
			return out, nil

		case TypeResult:
			var p ResultPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return out, fmt.Errorf("rpc: decode result: %w", err)
			}
			out.Result = &p
			if !p.Success || p.Account == nil {
				return out, nil
			}

		case TypeAccount:
			var p AccountPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return out, fmt.Errorf("rpc: decode account: %w", err)
			}
			out.Account = &p
			return out, nil
		}
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClientClosed
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		env, err := readEnvelope(context.Background(), c.conn)
		if err != nil {
			if errors.Is(err, errBadJSON) {
				continue
			}
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %w", ErrClientClosed, err)
			c.mu.Unlock()
			return
		}
		if env.Validate() != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case ch <- env:
		default:
		}
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}
