package session

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/security/token"
)

// Login exchanges credentials for a session token, fetches the profile
// (best-effort), and stores the account as the active one.
func (m *Manager) Login(mail, password string, cb Callback) {
	const op = "login"

	mail = strings.TrimSpace(mail)
	if mail == "" || password == "" {
		m.reject(op, cb, validationFailure(msgNeedCreds))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, log *slog.Logger) Result {
		tok := m.remote.GetToken(ctx, mail, password)
		issued, ok := tok.Value()
		if !ok {
			return networkFailure(tok.Message())
		}

		acct := account.Account{GUID: issued.GUID, Mail: mail, SessionToken: issued.SessionToken}

		info := m.remote.GetAccountInfo(ctx, issued.GUID, issued.SessionToken)
		if prof, ok := info.Value(); ok {
			if prof.Mail != "" {
				acct.Mail = prof.Mail
			}
			acct.ProfileImage = prof.ProfileImage
		} else {
			log.Info("session.login.account_info.fallback", "guid", issued.GUID, "msg", info.Message())
		}

		return m.admit(ctx, log, acct, msgLoginOK)
	})
}

// Register creates the account on the server via sign-in and stores it as the active one.
func (m *Manager) Register(mail, password string, cb Callback) {
	const op = "register"

	mail = strings.TrimSpace(mail)
	if mail == "" || password == "" {
		m.reject(op, cb, validationFailure(msgNeedCreds))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, log *slog.Logger) Result {
		res := m.remote.SignIn(ctx, mail, password)
		signed, ok := res.Value()
		if !ok {
			return networkFailure(res.Message())
		}

		acct := account.Account{
			GUID:         signed.GUID,
			Mail:         signed.Mail,
			ProfileImage: signed.ProfileImage,
			SessionToken: signed.SessionToken,
		}
		if acct.Mail == "" {
			acct.Mail = mail
		}
		return m.admit(ctx, log, acct, msgRegisterOK)
	})
}

// admit enforces the account cap for new guids, upserts acct as active and syncs the cache.
func (m *Manager) admit(ctx context.Context, log *slog.Logger, acct account.Account, okMsg string) Result {
	m.active.Lock()
	defer m.active.Unlock()

	_, err := m.repo.Get(ctx, acct.GUID)
	switch {
	case account.IsNotFound(err):
		n, err := m.repo.Count(ctx)
		if err != nil {
			return storageFailure(err)
		}
		if n >= m.cfg.MaxAccounts {
			return capacityFailure(m.cfg.MaxAccounts)
		}
	case err != nil:
		return storageFailure(err)
	}

	stored, err := m.repo.UpsertActive(ctx, acct)
	if err != nil {
		return storageFailure(err)
	}
	log.Debug("session.account.active", "guid", stored.GUID, "token_fp", token.Fingerprint(stored.SessionToken))

	m.syncCacheLocked(ctx, []account.Account{stored}, nil)
	return okResult(okMsg, accountPtr(stored))
}

// Logout signs guid out remotely (best-effort) and removes it locally.
// If it was the active account, the first remaining account in mail order becomes active.
// An empty or unknown guid is a no-op reported as success.
func (m *Manager) Logout(guid string, cb Callback) {
	const op = "logout"

	guid = strings.TrimSpace(guid)
	if guid == "" {
		m.reject(op, cb, okResult(msgNoMatch, nil))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, log *slog.Logger) Result {
		existing, err := m.repo.Get(ctx, guid)
		if account.IsNotFound(err) {
			return okResult(msgNoMatch, nil)
		}
		if err != nil {
			return storageFailure(err)
		}

		m.signOut(ctx, log, existing)

		m.active.Lock()
		defer m.active.Unlock()

		// Re-read under the lock: a concurrent switch may have changed the active flag.
		cur, err := m.repo.Get(ctx, guid)
		if account.IsNotFound(err) {
			return okResult(msgNoMatch, nil)
		}
		if err != nil {
			return storageFailure(err)
		}

		if err := m.repo.DeleteByGUID(ctx, guid); err != nil {
			return storageFailure(err)
		}

		var (
			promoted *account.Account
			mirror   []account.Account
		)
		if cur.IsActive {
			rest, err := m.repo.ListAll(ctx)
			if err != nil {
				return storageFailure(err)
			}
			if len(rest) > 0 {
				next, err := m.repo.UpsertActive(ctx, rest[0])
				if err != nil {
					return storageFailure(err)
				}
				log.Info("session.logout.promoted", "guid", next.GUID)
				promoted = accountPtr(next)
				mirror = append(mirror, next)
			}
		}

		m.syncCacheLocked(ctx, mirror, []string{cur.Mail})
		return okResult(msgLogoutOK, promoted)
	})
}

// LogoutAll signs every account out remotely (best-effort) and clears the repository and cache.
// Sign-outs run outside the lock. Accounts committed meanwhile by a concurrent login are
// picked up by re-listing under the lock; after logoutAllRounds the remainder is signed
// out while holding it, so nothing is deleted without a sign-out attempt.
func (m *Manager) LogoutAll(cb Callback) {
	const op = "logout_all"

	m.spawn(op, cb, func(ctx context.Context, log *slog.Logger) Result {
		signed := make(map[sessionKey]struct{})

		pending, err := m.repo.ListAll(ctx)
		if err != nil {
			return storageFailure(err)
		}
		for round := 1; ; round++ {
			m.signOutAll(ctx, log, pending)
			for _, a := range pending {
				signed[keyOf(a)] = struct{}{}
			}

			m.active.Lock()
			all, err := m.repo.ListAll(ctx)
			if err != nil {
				m.active.Unlock()
				return storageFailure(err)
			}
			pending = unsigned(all, signed)

			if len(pending) > 0 && round < logoutAllRounds {
				m.active.Unlock()
				log.Debug("session.logout_all.relist", "round", round, "added", len(pending))
				continue
			}

			res := m.clearAllLocked(ctx, log, pending, len(all))
			m.active.Unlock()
			return res
		}
	})
}

const logoutAllRounds = 3

// sessionKey identifies one remote session; a re-login of the same guid is a new session.
type sessionKey struct{ guid, token string }

func keyOf(a account.Account) sessionKey { return sessionKey{a.GUID, a.SessionToken} }

func unsigned(all []account.Account, signed map[sessionKey]struct{}) []account.Account {
	var out []account.Account
	for _, a := range all {
		if _, ok := signed[keyOf(a)]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// clearAllLocked signs out late arrivals and deletes everything. Caller holds m.active.
func (m *Manager) clearAllLocked(ctx context.Context, log *slog.Logger, late []account.Account, total int) Result {
	if len(late) > 0 {
		log.Info("session.logout_all.late_sign_out", "count", len(late))
		m.signOutAll(ctx, log, late)
	}
	if err := m.repo.DeleteAll(ctx); err != nil {
		return storageFailure(err)
	}
	_ = m.cache.ForgetAll(ctx)

	log.Info("session.logout_all.removed", "count", total)
	return okResult(msgLogoutAllOK, nil)
}

func (m *Manager) signOutAll(ctx context.Context, log *slog.Logger, accts []account.Account) {
	var g errgroup.Group
	for _, a := range accts {
		g.Go(func() error {
			m.signOut(ctx, log, a)
			return nil
		})
	}
	_ = g.Wait()
}

// SwitchAccount makes an existing account active. No network call is made.
// An empty or unknown guid is a no-op reported as success.
func (m *Manager) SwitchAccount(guid string, cb Callback) {
	const op = "switch_account"

	guid = strings.TrimSpace(guid)
	if guid == "" {
		m.reject(op, cb, okResult(msgNoMatch, nil))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, log *slog.Logger) Result {
		m.active.Lock()
		defer m.active.Unlock()

		existing, err := m.repo.Get(ctx, guid)
		if account.IsNotFound(err) {
			log.Info("session.switch_account.no_match", "guid", guid)
			return okResult(msgNoMatch, nil)
		}
		if err != nil {
			return storageFailure(err)
		}

		stored, err := m.repo.UpsertActive(ctx, existing)
		if err != nil {
			return storageFailure(err)
		}

		m.syncCacheLocked(ctx, []account.Account{stored}, nil)
		return okResult(msgSwitchOK, accountPtr(stored))
	})
}

// FetchToken exchanges credentials for a session token without touching local state.
func (m *Manager) FetchToken(mail, password string, cb Callback) {
	const op = "fetch_token"

	mail = strings.TrimSpace(mail)
	if mail == "" || password == "" {
		m.reject(op, cb, validationFailure(msgNeedCreds))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, _ *slog.Logger) Result {
		res := m.remote.GetToken(ctx, mail, password)
		v, ok := res.Value()
		if !ok {
			return networkFailure(res.Message())
		}
		return okResult(msgTokenOK, &account.Account{GUID: v.GUID, Mail: mail, SessionToken: v.SessionToken})
	})
}

// FetchAccountInfo fetches the server-side profile for guid without touching local state.
func (m *Manager) FetchAccountInfo(guid, sessionToken string, cb Callback) {
	const op = "fetch_account_info"

	guid = strings.TrimSpace(guid)
	if guid == "" || sessionToken == "" {
		m.reject(op, cb, validationFailure(msgNeedGUIDToken))
		return
	}

	m.spawn(op, cb, func(ctx context.Context, _ *slog.Logger) Result {
		res := m.remote.GetAccountInfo(ctx, guid, sessionToken)
		v, ok := res.Value()
		if !ok {
			return networkFailure(res.Message())
		}

		gotGUID := v.GUID
		if gotGUID == "" {
			gotGUID = guid
		}
		out := okResult(msgAccountInfoOK, &account.Account{
			GUID:         gotGUID,
			Mail:         v.Mail,
			ProfileImage: v.ProfileImage,
			SessionToken: sessionToken,
		})
		out.Tokens = v.Tokens
		return out
	})
}

// signOut revokes a's token remotely. Failures are logged and dropped.
func (m *Manager) signOut(ctx context.Context, log *slog.Logger, a account.Account) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SignOutTimeout)
	defer cancel()

	res := m.remote.SignOut(ctx, a.GUID, a.SessionToken)
	if !res.Ok() {
		log.Warn("session.sign_out.remote.fail", "guid", a.GUID, "kind", res.Kind().String(), "msg", res.Message())
	}
}
