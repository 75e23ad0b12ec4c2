package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"ssod/cmd/internal/auth/account"
	authapi "ssod/cmd/internal/auth/api"
	"ssod/cmd/internal/credcache"
)

type testEnv struct {
	mgr    *Manager
	repo   *account.InMemoryStore
	cache  *credcache.InMemoryCache
	remote *fakeRemote
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:   account.NewInMemoryStore(),
		cache:  credcache.NewInMemoryCache(),
		remote: newFakeRemote(),
	}
	mgr, err := NewManager(cfg, nil, env.repo, credcache.NewSync(env.cache, nil, time.Second), env.remote)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	env.mgr = mgr
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Close(ctx)
	})
	return env
}

func await(t *testing.T, run func(cb Callback)) (Result, *Promise) {
	t.Helper()

	p := NewPromise()
	run(p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("wait for result: %v", err)
	}
	return res, p
}

func (env *testEnv) login(t *testing.T, mail string) Result {
	t.Helper()
	env.remote.addUser(mail, "pw", nil)
	res, _ := await(t, func(cb Callback) { env.mgr.Login(mail, "pw", cb) })
	return res
}

func (env *testEnv) activeCount(t *testing.T) int {
	t.Helper()
	all, err := env.mgr.GetAllAccounts(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	n := 0
	for _, a := range all {
		if a.IsActive {
			n++
		}
	}
	return n
}

func (env *testEnv) cachedMails(t *testing.T) []string {
	t.Helper()
	mails, err := env.cache.ListMails(context.Background())
	if err != nil {
		t.Fatalf("list cache: %v", err)
	}
	sort.Strings(mails)
	return mails
}

// waitIdle closes the manager, which waits for every scheduled task.
func (env *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.mgr.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestManager_Login_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.addUser("a@x", "pw", account.StringPtr("https://img/a.png"))

	res, p := await(t, func(cb Callback) { env.mgr.Login("a@x", "pw", cb) })
	if !res.Success || res.Code != CodeOK || res.Account == nil {
		t.Fatalf("expected success with account, got %+v", res)
	}
	if res.Account.GUID != "g-a@x" || !res.Account.IsActive || res.Account.ProfileImage == nil {
		t.Fatalf("unexpected account: %+v", res.Account)
	}

	delivered, ok := p.Delivered()
	if !ok || !delivered.Equal(*res.Account) {
		t.Fatalf("expected delivered account to match result, got ok=%v %+v", ok, delivered)
	}

	active, ok, err := env.mgr.GetActiveAccount(context.Background())
	if err != nil || !ok {
		t.Fatalf("get active: ok=%v err=%v", ok, err)
	}
	if active.GUID != "g-a@x" {
		t.Fatalf("unexpected active guid %q", active.GUID)
	}

	e, ok, _ := env.cache.Get(context.Background(), "a@x")
	if !ok || e.SessionToken != active.SessionToken {
		t.Fatalf("cache not mirrored: ok=%v %+v", ok, e)
	}
}

func TestManager_Login_AccountInfoFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.infoFails = true
	env.remote.addUser("a@x", "pw", account.StringPtr("img"))

	res, _ := await(t, func(cb Callback) { env.mgr.Login("a@x", "pw", cb) })
	if !res.Success {
		t.Fatalf("login must succeed when account info fails, got %+v", res)
	}
	if res.Account.Mail != "a@x" || res.Account.ProfileImage != nil {
		t.Fatalf("expected caller mail and no image, got %+v", res.Account)
	}
}

func TestManager_Login_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())

	tests := []struct {
		name     string
		mail, pw string
	}{
		{"empty mail", "", "pw"},
		{"blank mail", "   ", "pw"},
		{"empty password", "a@x", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPromise()
			env.mgr.Login(tc.mail, tc.pw, p)

			// Delivered before Login returns.
			select {
			case <-p.Done():
			default:
				t.Fatalf("validation failure must be delivered synchronously")
			}
			res, _ := p.Wait(context.Background())
			if res.Success || res.Code != CodeValidation || !errors.Is(res.Err, ErrValidation) {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}

	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("validation failures must not touch storage, got %d accounts", n)
	}
}

func TestManager_Login_BadCredentialsFromAuthAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `<error><message>bad credentials</message></error>`)
	}))
	defer srv.Close()

	cfg := authapi.DefaultConfig()
	cfg.BaseURL = srv.URL
	client, err := authapi.NewClient(cfg, nil, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	repo := account.NewInMemoryStore()
	mgr, err := NewManager(DefaultConfig(), nil, repo, nil, client)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer func() { _ = mgr.Close(context.Background()) }()

	res, _ := await(t, func(cb Callback) { mgr.Login("a@x", "wrong", cb) })
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Message != "bad credentials" || res.Code != CodeNetwork || !errors.Is(res.Err, ErrNetwork) {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Fatalf("failed login must not persist, got %d", n)
	}
}

func TestManager_Register(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())

	res, _ := await(t, func(cb Callback) { env.mgr.Register("new@x", "pw", cb) })
	if !res.Success || res.Account == nil || res.Account.Mail != "new@x" || !res.Account.IsActive {
		t.Fatalf("unexpected register result: %+v", res)
	}

	res, _ = await(t, func(cb Callback) { env.mgr.Register("new@x", "other", cb) })
	if res.Success || res.Message != "bad credentials" {
		t.Fatalf("expected server rejection, got %+v", res)
	}
}

func TestManager_CapExceeded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())

	for i := 0; i < 6; i++ {
		if res := env.login(t, fmt.Sprintf("u%d@x", i)); !res.Success {
			t.Fatalf("login %d: %+v", i, res)
		}
	}
	before, _, _ := env.mgr.GetActiveAccount(context.Background())

	res := env.login(t, "u6@x")
	if res.Success || res.Code != CodeCapacity || !errors.Is(res.Err, ErrCapacity) {
		t.Fatalf("expected capacity failure, got %+v", res)
	}

	n, _ := env.repo.Count(context.Background())
	if n != 6 {
		t.Fatalf("expected 6 accounts, got %d", n)
	}
	after, _, _ := env.mgr.GetActiveAccount(context.Background())
	if after.GUID != before.GUID {
		t.Fatalf("active account changed on capacity failure: %q -> %q", before.GUID, after.GUID)
	}
	if _, ok, _ := env.cache.Get(context.Background(), "u6@x"); ok {
		t.Fatalf("rejected account must not be cached")
	}

	// Re-login of an existing guid is not subject to the cap.
	if res := env.login(t, "u0@x"); !res.Success {
		t.Fatalf("re-login at cap must succeed, got %+v", res)
	}
}

func TestManager_ConcurrentLogins_RespectCapAndSingleActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())

	const callers = 20
	for i := 0; i < callers; i++ {
		env.remote.addUser(fmt.Sprintf("c%02d@x", i), "pw", nil)
	}

	promises := make([]*Promise, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		promises[i] = NewPromise()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env.mgr.Login(fmt.Sprintf("c%02d@x", i), "pw", promises[i])
		}(i)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	successes, capacity := 0, 0
	for i, p := range promises {
		res, err := p.Wait(ctx)
		if err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		switch res.Code {
		case CodeOK:
			successes++
		case CodeCapacity:
			capacity++
		default:
			t.Fatalf("unexpected result %d: %+v", i, res)
		}
	}

	if successes != 6 || capacity != callers-6 {
		t.Fatalf("expected 6 successes and %d capacity failures, got %d / %d", callers-6, successes, capacity)
	}
	if n, _ := env.repo.Count(context.Background()); n != 6 {
		t.Fatalf("expected 6 accounts, got %d", n)
	}
	if n := env.activeCount(t); n != 1 {
		t.Fatalf("expected exactly one active account, got %d", n)
	}
	if mails := env.cachedMails(t); len(mails) != 6 {
		t.Fatalf("expected cache to mirror 6 accounts, got %v", mails)
	}
}

func TestManager_ConcurrentLogins_LastSlot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	for i := 0; i < 5; i++ {
		if res := env.login(t, fmt.Sprintf("u%d@x", i)); !res.Success {
			t.Fatalf("login %d: %+v", i, res)
		}
	}
	env.remote.addUser("p@x", "pw", nil)
	env.remote.addUser("q@x", "pw", nil)

	pa, pb := NewPromise(), NewPromise()
	env.mgr.Login("p@x", "pw", pa)
	env.mgr.Login("q@x", "pw", pb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ra, err := pa.Wait(ctx)
	if err != nil {
		t.Fatalf("wait a: %v", err)
	}
	rb, err := pb.Wait(ctx)
	if err != nil {
		t.Fatalf("wait b: %v", err)
	}

	if ra.Success == rb.Success {
		t.Fatalf("exactly one of two racing logins must win the last slot: a=%+v b=%+v", ra, rb)
	}
	if n, _ := env.repo.Count(context.Background()); n != 6 {
		t.Fatalf("expected 6 accounts, got %d", n)
	}
}

func TestManager_SwitchAccount_Idempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")
	env.login(t, "b@x")

	res, _ := await(t, func(cb Callback) { env.mgr.SwitchAccount("g-a@x", cb) })
	if !res.Success || res.Account == nil || res.Account.GUID != "g-a@x" {
		t.Fatalf("unexpected switch result: %+v", res)
	}
	first, _ := env.mgr.GetAllAccounts(context.Background())

	res, _ = await(t, func(cb Callback) { env.mgr.SwitchAccount("g-a@x", cb) })
	if !res.Success {
		t.Fatalf("second switch: %+v", res)
	}
	second, _ := env.mgr.GetAllAccounts(context.Background())

	if len(first) != len(second) {
		t.Fatalf("account count changed across repeated switch")
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("state changed across repeated switch: %+v vs %+v", first[i], second[i])
		}
	}
	if n := env.activeCount(t); n != 1 {
		t.Fatalf("expected one active, got %d", n)
	}
}

func TestManager_SwitchAccount_UnknownIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")

	res, _ := await(t, func(cb Callback) { env.mgr.SwitchAccount("missing", cb) })
	if !res.Success || res.Message != msgNoMatch || res.Account != nil {
		t.Fatalf("expected no-op success, got %+v", res)
	}

	// Without a callback the call is silent.
	env.mgr.SwitchAccount("missing", nil)
	env.mgr.SwitchAccount("", nil)
	env.waitIdle(t)

	active, ok, _ := env.mgr.GetActiveAccount(context.Background())
	if !ok || active.GUID != "g-a@x" {
		t.Fatalf("active account changed: ok=%v %+v", ok, active)
	}
}

func TestManager_Logout_PromotesFirstRemaining(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "b@x")
	env.login(t, "a@x")
	env.login(t, "c@x") // active

	res, _ := await(t, func(cb Callback) { env.mgr.Logout("g-c@x", cb) })
	if !res.Success {
		t.Fatalf("logout: %+v", res)
	}
	if res.Account == nil || res.Account.GUID != "g-a@x" {
		t.Fatalf("expected a@x promoted, got %+v", res.Account)
	}

	active, ok, _ := env.mgr.GetActiveAccount(context.Background())
	if !ok || active.GUID != "g-a@x" {
		t.Fatalf("expected a@x active, got ok=%v %+v", ok, active)
	}
	if n := env.activeCount(t); n != 1 {
		t.Fatalf("expected one active, got %d", n)
	}
	if mails := env.cachedMails(t); len(mails) != 2 || mails[0] != "a@x" || mails[1] != "b@x" {
		t.Fatalf("unexpected cache after logout: %v", mails)
	}
	if got := env.remote.signedOut(); len(got) != 1 || got[0] != "g-c@x" {
		t.Fatalf("expected remote sign-out of c, got %v", got)
	}
}

func TestManager_Logout_InactiveKeepsActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")
	env.login(t, "b@x") // active

	res, _ := await(t, func(cb Callback) { env.mgr.Logout("g-a@x", cb) })
	if !res.Success || res.Account != nil {
		t.Fatalf("unexpected logout result: %+v", res)
	}
	active, _, _ := env.mgr.GetActiveAccount(context.Background())
	if active.GUID != "g-b@x" {
		t.Fatalf("active account must not change, got %q", active.GUID)
	}
}

func TestManager_Logout_RemoteFailureStillRemoves(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")
	env.remote.signOutFails = true

	res, _ := await(t, func(cb Callback) { env.mgr.Logout("g-a@x", cb) })
	if !res.Success {
		t.Fatalf("logout must succeed despite remote failure: %+v", res)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("expected account removed, got %d", n)
	}
	if _, ok, _ := env.mgr.GetActiveAccount(context.Background()); ok {
		t.Fatalf("expected no active account")
	}
}

func TestManager_Logout_UnknownIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")

	for _, guid := range []string{"missing", ""} {
		res, _ := await(t, func(cb Callback) { env.mgr.Logout(guid, cb) })
		if !res.Success || res.Message != msgNoMatch {
			t.Fatalf("logout(%q): expected no-op success, got %+v", guid, res)
		}
	}
	if n, _ := env.repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected account kept, got %d", n)
	}
	if got := env.remote.signedOut(); len(got) != 0 {
		t.Fatalf("unknown guid must not reach the server, got %v", got)
	}
}

func TestManager_LogoutAll(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")
	env.login(t, "b@x")
	env.remote.signOutFails = true

	res, _ := await(t, func(cb Callback) { env.mgr.LogoutAll(cb) })
	if !res.Success {
		t.Fatalf("logout all: %+v", res)
	}

	all, err := env.mgr.GetAllAccounts(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty listing, got %v err=%v", all, err)
	}
	if mails := env.cachedMails(t); len(mails) != 0 {
		t.Fatalf("expected empty cache, got %v", mails)
	}
	if got := env.remote.signedOut(); len(got) != 2 {
		t.Fatalf("expected both accounts signed out remotely, got %v", got)
	}
}

func TestManager_LogoutAll_SignsOutAccountsAddedMeanwhile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")

	// Commit a second account while the first sign-out is in flight, as a
	// concurrent login would between the initial listing and the delete.
	var once sync.Once
	env.remote.onSignOut = func(string) {
		once.Do(func() {
			_, err := env.repo.UpsertActive(context.Background(), account.Account{
				GUID: "g-late", Mail: "late@x", SessionToken: "tok-late",
			})
			if err != nil {
				t.Errorf("insert late account: %v", err)
			}
		})
	}

	res, _ := await(t, func(cb Callback) { env.mgr.LogoutAll(cb) })
	if !res.Success {
		t.Fatalf("logout all: %+v", res)
	}

	got := env.remote.signedOut()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "g-a@x" || got[1] != "g-late" {
		t.Fatalf("expected both accounts signed out remotely, got %v", got)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("expected empty repository, got %d", n)
	}
}

func TestManager_LogoutAll_LateArrivalsPastRoundLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")

	// Every sign-out outside the lock races in one more account, so the
	// re-list never settles; the last batch is signed out under the lock.
	var (
		mu    sync.Mutex
		added int
	)
	env.remote.onSignOut = func(string) {
		mu.Lock()
		defer mu.Unlock()
		if added >= logoutAllRounds {
			return
		}
		added++
		guid := fmt.Sprintf("g-late-%d", added)
		if _, err := env.repo.UpsertActive(context.Background(), account.Account{
			GUID: guid, Mail: guid + "@x", SessionToken: "tok-" + guid,
		}); err != nil {
			t.Errorf("insert %s: %v", guid, err)
		}
	}

	res, _ := await(t, func(cb Callback) { env.mgr.LogoutAll(cb) })
	if !res.Success {
		t.Fatalf("logout all: %+v", res)
	}

	got := env.remote.signedOut()
	if len(got) != logoutAllRounds+1 || got[len(got)-1] != fmt.Sprintf("g-late-%d", logoutAllRounds) {
		t.Fatalf("expected %d sign-outs ending with the last arrival, got %v", logoutAllRounds+1, got)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("expected empty repository, got %d", n)
	}
}

func TestManager_GetAllAccounts_Empty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())

	all, err := env.mgr.GetAllAccounts(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}
	if _, ok, err := env.mgr.GetActiveAccount(context.Background()); ok || err != nil {
		t.Fatalf("expected no active account, got ok=%v err=%v", ok, err)
	}
}

func TestManager_FetchToken_DoesNotPersist(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.addUser("a@x", "pw", nil)

	res, _ := await(t, func(cb Callback) { env.mgr.FetchToken("a@x", "pw", cb) })
	if !res.Success || res.Account == nil || res.Account.SessionToken == "" || res.Account.Mail != "a@x" {
		t.Fatalf("unexpected fetch token result: %+v", res)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("fetch token must not persist, got %d", n)
	}

	res, _ = await(t, func(cb Callback) { env.mgr.FetchToken("a@x", "", cb) })
	if res.Code != CodeValidation {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestManager_FetchAccountInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.addUser("a@x", "pw", account.StringPtr("img"))

	res, _ := await(t, func(cb Callback) { env.mgr.FetchAccountInfo("g-a@x", "tok", cb) })
	if !res.Success || res.Account == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Account.Mail != "a@x" || res.Account.SessionToken != "tok" || len(res.Tokens) != 1 {
		t.Fatalf("unexpected info: %+v tokens=%v", res.Account, res.Tokens)
	}
	if n, _ := env.repo.Count(context.Background()); n != 0 {
		t.Fatalf("fetch account info must not persist, got %d", n)
	}

	res, _ = await(t, func(cb Callback) { env.mgr.FetchAccountInfo("g-a@x", "", cb) })
	if res.Code != CodeValidation {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestManager_PanicBecomesInternalFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.panicOnToken = true

	res, _ := await(t, func(cb Callback) { env.mgr.Login("a@x", "pw", cb) })
	if res.Success || res.Code != CodeInternal || !errors.Is(res.Err, ErrInternal) {
		t.Fatalf("expected internal failure, got %+v", res)
	}

	// The manager keeps serving after a panic.
	env.remote.panicOnToken = false
	if res := env.login(t, "b@x"); !res.Success {
		t.Fatalf("login after panic: %+v", res)
	}
}

func TestManager_DeliveryErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.addUser("a@x", "pw", nil)

	var (
		mu      sync.Mutex
		results int
		accts   int
	)
	attempted := make(chan struct{})
	cb := CallbackFuncs{
		Result: func(Result) error {
			mu.Lock()
			results++
			mu.Unlock()
			close(attempted)
			return errors.New("caller gone")
		},
		Account: func(account.Account) error {
			mu.Lock()
			accts++
			mu.Unlock()
			return nil
		},
	}
	env.mgr.Login("a@x", "pw", cb)

	select {
	case <-attempted:
	case <-time.After(5 * time.Second):
		t.Fatalf("result was never delivered")
	}
	env.waitIdle(t)

	mu.Lock()
	defer mu.Unlock()
	if results != 1 {
		t.Fatalf("expected exactly one result delivery attempt, got %d", results)
	}
	if accts != 0 {
		t.Fatalf("account must not be delivered to an unreachable caller, got %d", accts)
	}
	if n, _ := env.repo.Count(context.Background()); n != 1 {
		t.Fatalf("mutation must commit regardless of delivery, got %d", n)
	}
}

func TestManager_Close_CancelsAndStopsDelivery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.remote.addUser("a@x", "pw", nil)
	env.remote.block = make(chan struct{})

	inflight := NewPromise()
	env.mgr.Login("a@x", "pw", inflight)
	env.waitIdle(t)

	select {
	case <-inflight.Done():
		t.Fatalf("no delivery may happen after Close")
	default:
	}

	late := NewPromise()
	env.mgr.Login("a@x", "pw", late)
	select {
	case <-late.Done():
		t.Fatalf("calls after Close must not deliver")
	case <-time.After(50 * time.Millisecond):
	}

	if err := env.mgr.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Open after Close, got %v", err)
	}
}

type brokenCache struct{}

func (brokenCache) Upsert(context.Context, credcache.Entry) error { return credcache.ErrUnavailable }
func (brokenCache) Get(context.Context, string) (credcache.Entry, bool, error) {
	return credcache.Entry{}, false, credcache.ErrUnavailable
}
func (brokenCache) Remove(context.Context, string) error { return credcache.ErrUnavailable }
func (brokenCache) RemoveAll(context.Context) error      { return credcache.ErrUnavailable }
func (brokenCache) ListMails(context.Context) ([]string, error) {
	return nil, credcache.ErrUnavailable
}

func TestManager_CacheFailureDoesNotFailOperations(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.addUser("a@x", "pw", nil)
	mgr, err := NewManager(DefaultConfig(), nil, account.NewInMemoryStore(), credcache.NewSync(brokenCache{}, nil, time.Second), remote)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer func() { _ = mgr.Close(context.Background()) }()

	if err := mgr.Open(context.Background()); err != nil {
		t.Fatalf("open must tolerate cache failure: %v", err)
	}

	res, _ := await(t, func(cb Callback) { mgr.Login("a@x", "pw", cb) })
	if !res.Success {
		t.Fatalf("login must succeed with a broken cache: %+v", res)
	}
	res, _ = await(t, func(cb Callback) { mgr.Logout("g-a@x", cb) })
	if !res.Success {
		t.Fatalf("logout must succeed with a broken cache: %+v", res)
	}
}

func TestManager_Open_PurgesStaleCacheEntries(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DefaultConfig())
	env.login(t, "a@x")
	if err := env.cache.Upsert(context.Background(), credcache.Entry{GUID: "g-old", Mail: "old@x", SessionToken: "t"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if err := env.mgr.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if mails := env.cachedMails(t); len(mails) != 1 || mails[0] != "a@x" {
		t.Fatalf("expected only a@x cached, got %v", mails)
	}

	if err := env.cache.Upsert(context.Background(), credcache.Entry{GUID: "g-old", Mail: "old@x", SessionToken: "t"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	purged, err := env.mgr.Reconcile(context.Background())
	if err != nil || len(purged) != 1 || purged[0] != "old@x" {
		t.Fatalf("unexpected reconcile: purged=%v err=%v", purged, err)
	}
}

func TestNewManager_RejectsMissingDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(DefaultConfig(), nil, nil, nil, newFakeRemote()); err == nil {
		t.Fatalf("expected error for nil repository")
	}
	if _, err := NewManager(DefaultConfig(), nil, account.NewInMemoryStore(), nil, nil); err == nil {
		t.Fatalf("expected error for nil remote")
	}
	if _, err := NewManager(Config{}, nil, account.NewInMemoryStore(), nil, newFakeRemote()); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
