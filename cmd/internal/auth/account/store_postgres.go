package account

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSchema = "sso"

// PostgresStore implements Repository using PostgreSQL (<schema>.accounts).
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
//   - UpsertActive runs in one transaction behind a transactional advisory lock,
//     so concurrent processes sharing the database cannot interleave their
//     clear/set halves.
//   - A partial unique index rejects a second active row at the database level.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	now    func() time.Time
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "sso").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("account: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("account: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Repository.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: defaultSchema,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("account: nil pool")
	}
	return st, nil
}

var _ Repository = (*PostgresStore)(nil)

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) table() string { return pgIdent(s.schema, "accounts") }

// EnsureSchema creates the schema, table and indexes when missing.
// Production schema management happens outside the service; this exists for dev and integration tests.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := pgx.Identifier{s.schema}.Sanitize()
	tbl := s.table()
	activeIdx := pgx.Identifier{"accounts_single_active"}.Sanitize()
	mailIdx := pgx.Identifier{"accounts_mail"}.Sanitize()

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		`CREATE TABLE IF NOT EXISTS ` + tbl + ` (
			guid          text PRIMARY KEY,
			mail          text NOT NULL,
			profile_image text NULL,
			session_token text NOT NULL,
			is_active     boolean NOT NULL DEFAULT false,
			created_at    timestamptz NOT NULL DEFAULT now(),
			updated_at    timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + activeIdx + ` ON ` + tbl + ` ((true)) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS ` + mailIdx + ` ON ` + tbl + ` (mail, guid)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storage("account.EnsureSchema", err)
		}
	}
	return nil
}

// Get loads an account by guid.
func (s *PostgresStore) Get(ctx context.Context, guid string) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT guid, mail, profile_image, session_token, is_active
		FROM `+s.table()+`
		WHERE guid = $1
	`, strings.TrimSpace(guid))
	return scanOne("account.Get", row)
}

// GetByMail loads the first account (guid order) with the given mail.
func (s *PostgresStore) GetByMail(ctx context.Context, mail string) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT guid, mail, profile_image, session_token, is_active
		FROM `+s.table()+`
		WHERE mail = $1
		ORDER BY guid ASC
		LIMIT 1
	`, strings.TrimSpace(mail))
	return scanOne("account.GetByMail", row)
}

// GetActive loads the active account.
func (s *PostgresStore) GetActive(ctx context.Context) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT guid, mail, profile_image, session_token, is_active
		FROM `+s.table()+`
		WHERE is_active
		LIMIT 1
	`)
	return scanOne("account.GetActive", row)
}

// ListAll returns every account ordered by mail, then guid.
func (s *PostgresStore) ListAll(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT guid, mail, profile_image, session_token, is_active
		FROM `+s.table()+`
		ORDER BY mail ASC, guid ASC
	`)
	if err != nil {
		return nil, storage("account.ListAll", err)
	}
	defer rows.Close()

	out := make([]Account, 0, 8)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.GUID, &a.Mail, &a.ProfileImage, &a.SessionToken, &a.IsActive); err != nil {
			return nil, storage("account.ListAll", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage("account.ListAll", err)
	}
	return out, nil
}

// Count returns the number of stored accounts.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.table()).Scan(&n); err != nil {
		return 0, storage("account.Count", err)
	}
	return n, nil
}

// UpsertActive clears all active flags and upserts a as the active account in one transaction.
func (s *PostgresStore) UpsertActive(ctx context.Context, a Account) (Account, error) {
	a = a.Normalized()
	if err := a.Validate(); err != nil {
		return Account{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()
	tbl := s.table()

	if err := lockActiveTx(ctx, tx, tbl); err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}
	if err := clearActiveTx(ctx, tx, tbl, now); err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}
	stored, err := upsertActiveTx(ctx, tx, tbl, now, a)
	if err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}
	return stored, nil
}

// DeleteByGUID removes an account (idempotent).
func (s *PostgresStore) DeleteByGUID(ctx context.Context, guid string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE guid = $1`, strings.TrimSpace(guid))
	if err != nil {
		return storage("account.DeleteByGUID", err)
	}
	return nil
}

// DeleteAll removes every account.
func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()); err != nil {
		return storage("account.DeleteAll", err)
	}
	return nil
}

func scanOne(op string, row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.GUID, &a.Mail, &a.ProfileImage, &a.SessionToken, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, notFound(op)
	}
	if err != nil {
		return Account{}, storage(op, err)
	}
	return a, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
