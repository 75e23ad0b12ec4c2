package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/auth/session"
	"ssod/cmd/internal/ids"
	"ssod/cmd/internal/metrics"

	"github.com/coder/websocket"
)

// Service is the account session surface exposed over the gateway.
type Service interface {
	Login(mail, password string, cb session.Callback)
	Register(mail, password string, cb session.Callback)
	Logout(guid string, cb session.Callback)
	LogoutAll(cb session.Callback)
	SwitchAccount(guid string, cb session.Callback)
	FetchToken(mail, password string, cb session.Callback)
	FetchAccountInfo(guid, sessionToken string, cb session.Callback)

	GetActiveAccount(ctx context.Context) (account.Account, bool, error)
	GetAllAccounts(ctx context.Context) ([]account.Account, error)
}

var _ Service = (*session.Manager)(nil)

var errBadJSON = errors.New("rpc: bad json")

// Gateway is the WebSocket entrypoint for account session calls.
//
// It enforces subprotocol selection, heartbeats and read idle timeouts, and routes
// validated call frames to the Service. Results are written back on the same
// connection, correlated by the call's frame id.
type Gateway struct {
	log *slog.Logger
	svc Service
	cfg Config

	originPatterns []string

	mu     sync.Mutex
	peers  map[*peer]func(websocket.StatusCode, string)
	closed bool
}

// NewGateway constructs a gateway over svc.
func NewGateway(cfg Config, log *slog.Logger, svc Service) (*Gateway, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: nil service", ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return &Gateway{
		log:            log,
		svc:            svc,
		cfg:            cfg,
		originPatterns: originPatterns(cfg.AllowedOrigins),
		peers:          make(map[*peer]func(websocket.StatusCode, string)),
	}, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// Close shuts down every open connection. New upgrades are refused afterwards.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	shutdowns := make([]func(websocket.StatusCode, string), 0, len(g.peers))
	for _, fn := range g.peers {
		shutdowns = append(shutdowns, fn)
	}
	g.mu.Unlock()

	for _, fn := range shutdowns {
		fn(websocket.StatusGoingAway, "server shutdown")
	}
}

func (g *Gateway) register(p *peer, shutdown func(websocket.StatusCode, string)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.peers[p] = shutdown
	return true
}

func (g *Gateway) unregister(p *peer) {
	g.mu.Lock()
	delete(g.peers, p)
	g.mu.Unlock()
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the call loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Info("rpc.accept.fail", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != Subprotocol {
		g.log.Info("rpc.reject.subprotocol", "got", sp, "want", Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	p := newPeer(ids.MustULID(), g.cfg.SendQueueSize)
	log := g.log.With("peer_id", p.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			p.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	if !g.register(p, shutdown) {
		shutdown(websocket.StatusGoingAway, "server shutdown")
		return
	}
	defer g.unregister(p)

	metrics.RPCConnectionsCurrent.Inc()
	defer metrics.RPCConnectionsCurrent.Dec()
	log.Info("rpc.conn.open", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.Done():
				return
			case env := <-p.send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					log.Info("rpc.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					log.Info("rpc.ping.fail", "failures", failures, "err", err)
					if failures >= maxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "idle timeout")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.sendError(p, "", ErrCodeBadJSON, "invalid JSON")
				continue readLoop
			default:
				log.Info("rpc.read.fail", "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if err := env.Validate(); err != nil {
			g.sendError(p, env.ID, ErrCodeBadEnvelope, err.Error())
			continue readLoop
		}
		if env.Type != TypeCall {
			g.sendError(p, env.ID, ErrCodeBadEnvelope, fmt.Sprintf("unexpected type: %s", env.Type))
			continue readLoop
		}

		g.dispatch(ctx, log, p, env)
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
	log.Info("rpc.conn.close")
}

// ---- dispatch ----

func (g *Gateway) dispatch(ctx context.Context, log *slog.Logger, p *peer, env Envelope) {
	if !slices.Contains(Methods, env.Method) {
		metrics.RPCCallsTotal.WithLabelValues("unknown").Inc()
		g.sendError(p, env.ID, ErrCodeUnknownMethod, fmt.Sprintf("unknown method: %s", env.Method))
		return
	}
	metrics.RPCCallsTotal.WithLabelValues(env.Method).Inc()
	log.Debug("rpc.call", "method", env.Method, "call_id", env.ID)

	cb := callCallback{peer: p, callID: env.ID}

	switch env.Method {
	case MethodLogin, MethodRegister, MethodFetchToken:
		var in CredentialsPayload
		if !g.decode(p, env, &in, func() []string { return []string{in.Mail, in.Password} }) {
			return
		}
		switch env.Method {
		case MethodLogin:
			g.svc.Login(in.Mail, in.Password, cb)
		case MethodRegister:
			g.svc.Register(in.Mail, in.Password, cb)
		default:
			g.svc.FetchToken(in.Mail, in.Password, cb)
		}

	case MethodLogout, MethodSwitchAccount:
		var in GUIDPayload
		if !g.decode(p, env, &in, func() []string { return []string{in.GUID} }) {
			return
		}
		if env.Method == MethodLogout {
			g.svc.Logout(in.GUID, cb)
		} else {
			g.svc.SwitchAccount(in.GUID, cb)
		}

	case MethodLogoutAll:
		g.svc.LogoutAll(cb)

	case MethodFetchAccountInfo:
		var in AccountInfoPayload
		if !g.decode(p, env, &in, func() []string { return []string{in.GUID, in.SessionToken} }) {
			return
		}
		g.svc.FetchAccountInfo(in.GUID, in.SessionToken, cb)

	case MethodGetActiveAccount, MethodGetAllAccounts:
		g.query(ctx, log, p, env)
	}
}

// query answers a synchronous read with a reply frame.
func (g *Gateway) query(ctx context.Context, log *slog.Logger, p *peer, env Envelope) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out ReplyPayload
	switch env.Method {
	case MethodGetActiveAccount:
		a, ok, err := g.svc.GetActiveAccount(qctx)
		if err != nil {
			log.Warn("rpc.query.fail", "method", env.Method, "err", err)
			g.sendError(p, env.ID, ErrCodeQueryFailed, "storage unavailable")
			return
		}
		if ok {
			ap := FromAccount(a)
			out.Found = true
			out.Account = &ap
		}
	default:
		all, err := g.svc.GetAllAccounts(qctx)
		if err != nil {
			log.Warn("rpc.query.fail", "method", env.Method, "err", err)
			g.sendError(p, env.ID, ErrCodeQueryFailed, "storage unavailable")
			return
		}
		out.Accounts = make([]AccountPayload, 0, len(all))
		for _, a := range all {
			out.Accounts = append(out.Accounts, FromAccount(a))
		}
	}

	_ = p.enqueue(newEnvelope(TypeReply, env.ID, env.Method, encodePayload(out)))
}

// decode unmarshals the call payload into dst and bounds its string fields.
// On failure it sends an error frame and reports false.
func (g *Gateway) decode(p *peer, env Envelope, dst any, fields func() []string) bool {
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			g.sendError(p, env.ID, ErrCodeBadPayload, fmt.Sprintf("invalid payload: %v", err))
			return false
		}
	}
	for _, f := range fields() {
		if len(f) > maxFieldBytes {
			g.sendError(p, env.ID, ErrCodeBadPayload, fmt.Sprintf("field too long: max=%d bytes", maxFieldBytes))
			return false
		}
	}
	return true
}

// ---- send helpers ----

func (g *Gateway) sendError(p *peer, id, code, msg string) {
	_ = p.enqueue(newEnvelope(TypeError, id, "", encodePayload(ErrorPayload{Code: code, Message: msg})))
}

// ---- envelope IO ----

func newEnvelope(typ, id, method string, payload json.RawMessage) Envelope {
	if id == "" {
		id = ids.MustULID()
	}
	return Envelope{
		V:       Version,
		Type:    typ,
		ID:      id,
		TS:      time.Now().UTC(),
		Method:  method,
		Payload: payload,
	}
}

func encodePayload(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", errBadJSON, err)
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
