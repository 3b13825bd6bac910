package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/crypto"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
)

// Compile-time interface assertion.
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)

// PostgresCredentialRepo implements CredentialRepository on pgx. Tokens are
// sealed with the crypto box on the way in and opened on the way out.
type PostgresCredentialRepo struct {
	db   *pgxpool.Pool
	box  *crypto.Box
	node *snowflake.Node
}

func NewPostgresCredentialRepo(db *pgxpool.Pool, box *crypto.Box, node *snowflake.Node) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db, box: box, node: node}
}

const upsertCredentialSQL = `INSERT INTO google_credentials (id, user_id, access_token, refresh_token, expiry, scope, token_type)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	refresh_token = COALESCE(EXCLUDED.refresh_token, google_credentials.refresh_token),
	expiry = EXCLUDED.expiry,
	scope = EXCLUDED.scope,
	token_type = EXCLUDED.token_type,
	updated_at = now()`

// Save upserts by user id. An empty refresh token on a repeat authorization
// keeps the one already on file, since Google only issues it on the first
// consent unless re-approval is forced.
func (r *PostgresCredentialRepo) Save(ctx context.Context, cred domain.Credential) error {
	access, err := r.box.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	var refresh *string
	if cred.RefreshToken != "" {
		sealed, err := r.box.Encrypt(cred.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		refresh = &sealed
	}

	var expiry *time.Time
	if !cred.Expiry.IsZero() {
		e := cred.Expiry.UTC()
		expiry = &e
	}

	if _, err := r.db.Exec(ctx, upsertCredentialSQL,
		r.node.Generate().Int64(),
		cred.UserID,
		access,
		refresh,
		expiry,
		cred.Scope,
		cred.TokenType,
	); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

const getCredentialSQL = `SELECT id, user_id, access_token, refresh_token, expiry, scope, token_type, created_at, updated_at
FROM google_credentials WHERE user_id = $1`

func (r *PostgresCredentialRepo) Get(ctx context.Context, userID string) (*domain.Credential, error) {
	var (
		cred    domain.Credential
		access  string
		refresh *string
		expiry  *time.Time
	)
	err := r.db.QueryRow(ctx, getCredentialSQL, userID).Scan(
		&cred.ID,
		&cred.UserID,
		&access,
		&refresh,
		&expiry,
		&cred.Scope,
		&cred.TokenType,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if cred.AccessToken, err = r.box.Decrypt(access); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if refresh != nil {
		if cred.RefreshToken, err = r.box.Decrypt(*refresh); err != nil {
			return nil, fmt.Errorf("open refresh token: %w", err)
		}
	}
	if expiry != nil {
		cred.Expiry = *expiry
	}
	return &cred, nil
}

const updateAccessTokenSQL = `UPDATE google_credentials
SET access_token = $2, expiry = $3, updated_at = now()
WHERE user_id = $1`

func (r *PostgresCredentialRepo) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	sealed, err := r.box.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	var exp *time.Time
	if !expiry.IsZero() {
		e := expiry.UTC()
		exp = &e
	}
	tag, err := r.db.Exec(ctx, updateAccessTokenSQL, userID, sealed, exp)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCredentialRepo) Delete(ctx context.Context, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM google_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresCredentialRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM google_credentials WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("credential exists: %w", err)
	}
	return exists, nil
}

// DeleteExpiredUnrefreshable garbage-collects grants that can never become
// valid again: expiry in the past and no refresh token on file.
func (r *PostgresCredentialRepo) DeleteExpiredUnrefreshable(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM google_credentials WHERE refresh_token IS NULL AND expiry IS NOT NULL AND expiry < now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep credentials: %w", err)
	}
	return tag.RowsAffected(), nil
}
