package repository

import (
	"context"
	"time"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
)

// CredentialRepository persists encrypted Google credentials keyed by the
// external user id. Implementations encrypt tokens before write and decrypt
// them after read.
type CredentialRepository interface {
	// Save upserts the record for cred.UserID.
	Save(ctx context.Context, cred domain.Credential) error
	// Get returns the decrypted record, or nil when none exists.
	Get(ctx context.Context, userID string) (*domain.Credential, error)
	// UpdateAccessToken rewrites only the access token and expiry.
	// Returns domain.ErrNotFound when no record exists for userID.
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry time.Time) error
	// Delete removes the record and reports whether one was removed.
	// Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) (bool, error)
	// Exists checks for a record without paying the decryption cost.
	Exists(ctx context.Context, userID string) (bool, error)
	// DeleteExpiredUnrefreshable removes records whose access token has
	// expired and that carry no refresh token. Returns the number deleted.
	DeleteExpiredUnrefreshable(ctx context.Context) (int64, error)
}

// NonceStore persists short-lived single-use OAuth nonces.
type NonceStore interface {
	SaveNonce(ctx context.Context, nonce string, ttl time.Duration) error
	// ConsumeNonce atomically checks and deletes the nonce, reporting
	// whether it existed. A nonce can be consumed at most once.
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
}
