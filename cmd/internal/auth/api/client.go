package authapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ssod/cmd/internal/metrics"
	"ssod/cmd/security/token"
)

type endpoint struct {
	name string
	path string
}

var (
	epSignIn      = endpoint{name: "sign_in", path: "/sign-in"}
	epGetToken    = endpoint{name: "get_token", path: "/get-token"}
	epAccountInfo = endpoint{name: "account_info", path: "/account-info"}
	epSignOut     = endpoint{name: "sign_out", path: "/sign-out"}
)

// Client talks to the remote auth API. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient validates cfg and constructs a Client.
// A nil httpClient selects a dedicated client; the per-call timeout comes from cfg.Timeout.
func NewClient(cfg Config, log *slog.Logger, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, log: log}, nil
}

// SignIn registers (or signs in) mail and returns the issued session.
func (c *Client) SignIn(ctx context.Context, mail, password string) Result[SignInResponse] {
	return do(ctx, c, epSignIn, credentialsRequest{Mail: mail, Password: password}, func(f xmlFields) (SignInResponse, error) {
		if err := requireSession(f); err != nil {
			return SignInResponse{}, err
		}
		return SignInResponse{
			GUID:         f.GUID,
			Mail:         f.Mail,
			ProfileImage: f.ProfileImage,
			SessionToken: f.SessionToken,
		}, nil
	})
}

// GetToken exchanges credentials for a session token.
func (c *Client) GetToken(ctx context.Context, mail, password string) Result[TokenResponse] {
	return do(ctx, c, epGetToken, credentialsRequest{Mail: mail, Password: password}, func(f xmlFields) (TokenResponse, error) {
		if err := requireSession(f); err != nil {
			return TokenResponse{}, err
		}
		return TokenResponse{GUID: f.GUID, SessionToken: f.SessionToken}, nil
	})
}

// GetAccountInfo fetches the profile for guid and the tokens the server holds for it.
func (c *Client) GetAccountInfo(ctx context.Context, guid, sessionToken string) Result[AccountInfoResponse] {
	return do(ctx, c, epAccountInfo, sessionRequest{GUID: guid, SessionToken: sessionToken}, func(f xmlFields) (AccountInfoResponse, error) {
		tokens := f.Items
		if tokens == nil {
			tokens = []string{}
		}
		return AccountInfoResponse{
			GUID:         f.GUID,
			Mail:         f.Mail,
			ProfileImage: f.ProfileImage,
			Tokens:       tokens,
		}, nil
	})
}

// SignOut revokes sessionToken on the server.
func (c *Client) SignOut(ctx context.Context, guid, sessionToken string) Result[SignOutResponse] {
	return do(ctx, c, epSignOut, sessionRequest{GUID: guid, SessionToken: sessionToken}, func(f xmlFields) (SignOutResponse, error) {
		return SignOutResponse{Message: f.Message}, nil
	})
}

var errMissingSession = errors.New("missing guid or session_token")

func requireSession(f xmlFields) error {
	if f.GUID == "" || f.SessionToken == "" {
		return errMissingSession
	}
	return nil
}

func do[T any](ctx context.Context, c *Client, ep endpoint, body any, decode func(xmlFields) (T, error)) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res := roundTrip(ctx, c, ep, body, decode)
	c.observe(ep, res.Ok(), res.Kind(), res.Status(), res.Message(), time.Since(start))
	return res
}

func roundTrip[T any](ctx context.Context, c *Client, ep endpoint, body any, decode func(xmlFields) (T, error)) Result[T] {
	buf, err := encodeJSON(body)
	if err != nil {
		return Failure[T](KindTransport, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+ep.path, buf)
	if err != nil {
		return Failure[T](KindTransport, err.Error())
	}
	req.Header.Set("Content-Type", jsonContentType)
	req.Header.Set("Accept", "application/xml, text/xml")
	req.Header.Set(c.cfg.Secret.Header, c.cfg.Secret.Value)

	resp, err := c.http.Do(req)
	if err != nil {
		return Failure[T](KindTransport, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := readBody(resp.Body, c.cfg.MaxBodyBytes)

	if resp.StatusCode/100 != 2 {
		if readErr != nil {
			return serverFailure[T](resp.StatusCode, "")
		}
		return serverFailure[T](resp.StatusCode, errorMessage(raw))
	}
	if readErr != nil {
		return Failure[T](KindTransport, readErr.Error())
	}

	fields, err := decodeXMLFields(bytes.NewReader(raw))
	if err != nil {
		return Failure[T](KindTransport, fmt.Sprintf("malformed response: %v", err))
	}
	v, err := decode(fields)
	if err != nil {
		return Failure[T](KindTransport, fmt.Sprintf("malformed response: %v", err))
	}
	return Success(v)
}

func (c *Client) observe(ep endpoint, ok bool, kind Kind, status int, msg string, dur time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = kind.String()
	}
	metrics.AuthAPIRequestsTotal.WithLabelValues(ep.name, outcome).Inc()
	metrics.AuthAPIRequestDuration.WithLabelValues(ep.name).Observe(dur.Seconds())

	if ok {
		c.log.Debug("auth_api."+ep.name+".ok", "dur_ms", dur.Milliseconds())
		return
	}
	c.log.Warn("auth_api."+ep.name+".fail",
		"kind", kind.String(),
		"status", status,
		"msg", msg,
		"secret_fp", token.Fingerprint(c.cfg.Secret.Value),
		"dur_ms", dur.Milliseconds(),
	)
}
