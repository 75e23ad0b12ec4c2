package account

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// lockActiveTx serializes active-state writers across processes for the lifetime of tx.
// The key is derived from the qualified table name so separate schemas do not contend.
func lockActiveTx(ctx context.Context, tx pgx.Tx, table string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, table+":active")
	return err
}

func clearActiveTx(ctx context.Context, tx pgx.Tx, table string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE `+table+`
		SET is_active = false,
		    updated_at = $1
		WHERE is_active
	`, now)
	return err
}

func upsertActiveTx(ctx context.Context, tx pgx.Tx, table string, now time.Time, a Account) (Account, error) {
	var out Account
	err := tx.QueryRow(ctx, `
		INSERT INTO `+table+` (
			guid, mail, profile_image, session_token, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, true, $5, $5
		)
		ON CONFLICT (guid) DO UPDATE
		SET mail = EXCLUDED.mail,
		    profile_image = EXCLUDED.profile_image,
		    session_token = EXCLUDED.session_token,
		    is_active = true,
		    updated_at = EXCLUDED.updated_at
		RETURNING guid, mail, profile_image, session_token, is_active
	`, a.GUID, a.Mail, a.ProfileImage, a.SessionToken, now).Scan(
		&out.GUID,
		&out.Mail,
		&out.ProfileImage,
		&out.SessionToken,
		&out.IsActive,
	)
	return out, err
}
