package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
)

// StatePayload is carried through the provider's state parameter to
// correlate the callback with the original request. It is signed, so the
// embedded user id can be trusted once the signature verifies; the nonce is
// additionally checked against the single-use store.
type StatePayload struct {
	UserID   string `json:"uid"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"iat"`
}

// StateSigner issues and verifies HMAC-signed OAuth state tokens.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner builds a signer from the shared secret. States older than
// ttl are rejected even when the signature is valid.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
}

// Sign serializes and signs the payload as a compact JWS.
func (s *StateSigner) Sign(userID, nonce string) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: s.key}, nil)
	if err != nil {
		return "", fmt.Errorf("build state signer: %w", err)
	}
	payload, err := json.Marshal(StatePayload{
		UserID:   userID,
		Nonce:    nonce,
		IssuedAt: s.now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize state: %w", err)
	}
	return compact, nil
}

// Verify checks the signature and age of a state token and returns the
// embedded payload. Any failure maps to domain.ErrInvalidState.
func (s *StateSigner) Verify(state string) (*StatePayload, error) {
	jws, err := jose.ParseSigned(state, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, domain.ErrInvalidState
	}
	raw, err := jws.Verify(s.key)
	if err != nil {
		return nil, domain.ErrInvalidState
	}
	var payload StatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domain.ErrInvalidState
	}
	if strings.TrimSpace(payload.UserID) == "" || strings.TrimSpace(payload.Nonce) == "" {
		return nil, domain.ErrInvalidState
	}
	issued := time.Unix(payload.IssuedAt, 0)
	if s.now().Sub(issued) > s.ttl || issued.After(s.now().Add(time.Minute)) {
		return nil, domain.ErrInvalidState
	}
	return &payload, nil
}
