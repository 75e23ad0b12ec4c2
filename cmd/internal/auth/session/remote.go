package session

import (
	"context"

	authapi "ssod/cmd/internal/auth/api"
)

// Remote is the auth API surface the manager depends on. *authapi.Client satisfies it.
type Remote interface {
	SignIn(ctx context.Context, mail, password string) authapi.Result[authapi.SignInResponse]
	GetToken(ctx context.Context, mail, password string) authapi.Result[authapi.TokenResponse]
	GetAccountInfo(ctx context.Context, guid, sessionToken string) authapi.Result[authapi.AccountInfoResponse]
	SignOut(ctx context.Context, guid, sessionToken string) authapi.Result[authapi.SignOutResponse]
}

var _ Remote = (*authapi.Client)(nil)
