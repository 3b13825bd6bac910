package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
)

func TestStateSignerRoundTrip(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)

	state, err := signer.Sign("user-1", "nonce-abc")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	payload, err := signer.Verify(state)
	require.NoError(t, err)
	require.Equal(t, "user-1", payload.UserID)
	require.Equal(t, "nonce-abc", payload.Nonce)
}

func TestStateSignerRejectsTampering(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)

	state, err := signer.Sign("user-1", "nonce-abc")
	require.NoError(t, err)

	tampered := state[:len(state)-4] + "AAAA"
	_, err = signer.Verify(tampered)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = signer.Verify("not-a-jws")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStateSignerRejectsForeignKey(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)
	forger := NewStateSigner("attacker-secret", 10*time.Minute)

	forged, err := forger.Sign("victim-user", "nonce-abc")
	require.NoError(t, err)

	_, err = signer.Verify(forged)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStateSignerRejectsExpired(t *testing.T) {
	signer := NewStateSigner("state-secret", 10*time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	state, err := signer.Sign("user-1", "nonce-abc")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Verify(state)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}
