package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/auth/session"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the WebSocket subprotocol both sides must negotiate.
const Subprotocol = "ssod.rpc.v1"

// Frame types (wire-stable).
const (
	// TypeCall invokes a method (client -> server).
	TypeCall = "call"
	// TypeResult carries the outcome of a call (server -> client).
	TypeResult = "result"
	// TypeAccount carries the account delivered after a successful result (server -> client).
	TypeAccount = "account"
	// TypeReply answers a synchronous query (server -> client).
	TypeReply = "reply"
	// TypeError reports a frame the server could not act on (server -> client).
	TypeError = "error"
)

// Method names accepted in call frames.
const (
	MethodLogin            = "login"
	MethodRegister         = "register"
	MethodLogout           = "logout"
	MethodLogoutAll        = "logout_all"
	MethodSwitchAccount    = "switch_account"
	MethodGetActiveAccount = "get_active_account"
	MethodGetAllAccounts   = "get_all_accounts"
	MethodFetchToken       = "fetch_token"
	MethodFetchAccountInfo = "fetch_account_info"
)

// Methods lists every callable method in a stable order.
var Methods = []string{
	MethodLogin,
	MethodRegister,
	MethodLogout,
	MethodLogoutAll,
	MethodSwitchAccount,
	MethodGetActiveAccount,
	MethodGetAllAccounts,
	MethodFetchToken,
	MethodFetchAccountInfo,
}

// Error codes carried in error frames.
const (
	ErrCodeBadJSON       = "bad_json"
	ErrCodeBadEnvelope   = "bad_envelope"
	ErrCodeBadPayload    = "bad_payload"
	ErrCodeUnknownMethod = "unknown_method"
	ErrCodeQueryFailed   = "query_failed"
)

// Envelope is the canonical wire wrapper.
// Server frames reuse the ID of the call they answer.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}

	switch e.Type {
	case "":
		return errors.New("missing field: type")
	case TypeCall:
		if strings.TrimSpace(e.ID) == "" {
			return errors.New("missing field: id")
		}
		if strings.TrimSpace(e.Method) == "" {
			return errors.New("missing field: method")
		}
		return nil
	case TypeResult, TypeAccount, TypeReply, TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// CredentialsPayload is the argument of login, register and fetch_token.
type CredentialsPayload struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

// GUIDPayload is the argument of logout and switch_account.
type GUIDPayload struct {
	GUID string `json:"guid"`
}

// AccountInfoPayload is the argument of fetch_account_info.
type AccountInfoPayload struct {
	GUID         string `json:"guid"`
	SessionToken string `json:"session_token"`
}

// AccountPayload is the wire form of account.Account.
type AccountPayload struct {
	GUID         string  `json:"guid"`
	Mail         string  `json:"mail"`
	ProfileImage *string `json:"profile_image"`
	SessionToken string  `json:"session_token"`
	IsActive     bool    `json:"is_active"`
}

// ResultPayload is the wire form of session.Result.
type ResultPayload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Account *AccountPayload `json:"account,omitempty"`
	Tokens  []string        `json:"tokens,omitempty"`
}

// ReplyPayload answers get_active_account (Found, Account) and get_all_accounts (Accounts).
type ReplyPayload struct {
	Found    bool             `json:"found,omitempty"`
	Account  *AccountPayload  `json:"account,omitempty"`
	Accounts []AccountPayload `json:"accounts,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---- conversions ----

// FromAccount converts a stored account to its wire form.
func FromAccount(a account.Account) AccountPayload {
	a = a.Clone()
	return AccountPayload{
		GUID:         a.GUID,
		Mail:         a.Mail,
		ProfileImage: a.ProfileImage,
		SessionToken: a.SessionToken,
		IsActive:     a.IsActive,
	}
}

// Account converts the wire form back to an account.Account.
func (p AccountPayload) Account() account.Account {
	return account.Account{
		GUID:         p.GUID,
		Mail:         p.Mail,
		ProfileImage: p.ProfileImage,
		SessionToken: p.SessionToken,
		IsActive:     p.IsActive,
	}.Clone()
}

// FromResult converts a manager result to its wire form. Err is not carried.
func FromResult(r session.Result) ResultPayload {
	out := ResultPayload{
		Success: r.Success,
		Message: r.Message,
		Code:    string(r.Code),
		Tokens:  r.Tokens,
	}
	if r.Account != nil {
		a := FromAccount(*r.Account)
		out.Account = &a
	}
	return out
}
