package session

import (
	"context"
	"fmt"
	"sync"

	authapi "ssod/cmd/internal/auth/api"
)

type fakeUser struct {
	guid     string
	password string
	image    *string
}

// fakeRemote is an in-process auth API keyed by mail.
type fakeRemote struct {
	mu       sync.Mutex
	users    map[string]fakeUser
	issued   int
	signOuts []string

	infoFails    bool
	signOutFails bool
	panicOnToken bool

	// onSignOut, when set, runs after each recorded sign-out.
	onSignOut func(guid string)

	// block, when set, makes GetToken wait for it to close or for ctx to be done.
	block chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{users: make(map[string]fakeUser)}
}

func (f *fakeRemote) addUser(mail, password string, image *string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	guid := "g-" + mail
	f.users[mail] = fakeUser{guid: guid, password: password, image: image}
	return guid
}

func (f *fakeRemote) nextToken(guid string) string {
	f.issued++
	return fmt.Sprintf("tok-%s-%d", guid, f.issued)
}

func (f *fakeRemote) SignIn(_ context.Context, mail, password string) authapi.Result[authapi.SignInResponse] {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[mail]
	if !ok {
		u = fakeUser{guid: "g-" + mail, password: password}
		f.users[mail] = u
	} else if u.password != password {
		return authapi.Failure[authapi.SignInResponse](authapi.KindServer, "bad credentials")
	}
	return authapi.Success(authapi.SignInResponse{
		GUID:         u.guid,
		Mail:         mail,
		ProfileImage: u.image,
		SessionToken: f.nextToken(u.guid),
	})
}

func (f *fakeRemote) GetToken(ctx context.Context, mail, password string) authapi.Result[authapi.TokenResponse] {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return authapi.Failure[authapi.TokenResponse](authapi.KindTransport, ctx.Err().Error())
		}
	}
	if f.panicOnToken {
		panic("token backend exploded")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[mail]
	if !ok || u.password != password {
		return authapi.Failure[authapi.TokenResponse](authapi.KindServer, "bad credentials")
	}
	return authapi.Success(authapi.TokenResponse{GUID: u.guid, SessionToken: f.nextToken(u.guid)})
}

func (f *fakeRemote) GetAccountInfo(_ context.Context, guid, sessionToken string) authapi.Result[authapi.AccountInfoResponse] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.infoFails {
		return authapi.Failure[authapi.AccountInfoResponse](authapi.KindTransport, "")
	}
	for mail, u := range f.users {
		if u.guid == guid {
			return authapi.Success(authapi.AccountInfoResponse{
				GUID:         guid,
				Mail:         mail,
				ProfileImage: u.image,
				Tokens:       []string{sessionToken},
			})
		}
	}
	return authapi.Failure[authapi.AccountInfoResponse](authapi.KindServer, "unknown account")
}

func (f *fakeRemote) SignOut(_ context.Context, guid, _ string) authapi.Result[authapi.SignOutResponse] {
	f.mu.Lock()
	f.signOuts = append(f.signOuts, guid)
	fails, hook := f.signOutFails, f.onSignOut
	f.mu.Unlock()

	if hook != nil {
		hook(guid)
	}
	if fails {
		return authapi.Failure[authapi.SignOutResponse](authapi.KindTransport, "")
	}
	return authapi.Success(authapi.SignOutResponse{Message: "Signed out"})
}

func (f *fakeRemote) signedOut() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signOuts...)
}
