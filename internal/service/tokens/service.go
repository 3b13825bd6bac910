// Package tokens owns the Google OAuth token lifecycle: authorization,
// encrypted persistence, refresh-before-use, and revocation.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	googleadapter "github.com/Thiwanka-Sandakalum/vidsage-google/internal/adapter/google"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/repository"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/telemetry"
)

const (
	revokeEndpoint = "https://oauth2.googleapis.com/revoke"
	refreshTimeout = 30 * time.Second
)

// Service manages stored Google credentials for VidSage users.
type Service struct {
	repo    repository.CredentialRepository
	nonces  repository.NonceStore
	oauth   googleadapter.OAuthClient
	signer  *StateSigner
	metrics *telemetry.Metrics
	cfg     config.Config
	logger  *zap.Logger

	refreshes  singleflight.Group
	httpClient *http.Client
	revokeURL  string
}

// NewService wires the token lifecycle service.
func NewService(
	repo repository.CredentialRepository,
	nonces repository.NonceStore,
	oauth googleadapter.OAuthClient,
	signer *StateSigner,
	metrics *telemetry.Metrics,
	cfg config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		nonces:     nonces,
		oauth:      oauth,
		signer:     signer,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		revokeURL:  revokeEndpoint,
	}
}

// BeginAuthorization issues a signed state for the user and returns the
// consent URL to redirect them to.
func (s *Service) BeginAuthorization(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}

	nonce, err := secureRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	if err := s.nonces.SaveNonce(ctx, nonce, s.cfg.StateTTL); err != nil {
		return "", fmt.Errorf("persist nonce: %w", err)
	}
	state, err := s.signer.Sign(userID, nonce)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state), nil
}

// CompleteAuthorization verifies the callback state, consumes its nonce,
// exchanges the code, and stores the resulting credential. Returns the user
// id the grant was bound to.
func (s *Service) CompleteAuthorization(ctx context.Context, code, state string) (string, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return "", fmt.Errorf("%w: code and state are required", domain.ErrInvalidRequest)
	}

	payload, err := s.signer.Verify(state)
	if err != nil {
		return "", err
	}
	used, err := s.nonces.ConsumeNonce(ctx, payload.Nonce)
	if err != nil {
		return "", fmt.Errorf("consume nonce: %w", err)
	}
	if !used {
		return "", domain.ErrInvalidState
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	scope, _ := token.Extra("scope").(string)
	cred := domain.Credential{
		UserID:       payload.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scope:        scope,
		TokenType:    token.TokenType,
	}
	if err := s.repo.Save(ctx, cred); err != nil {
		return "", err
	}

	s.log().Info("google account connected",
		zap.String("user_id", payload.UserID),
		zap.Bool("has_refresh_token", cred.Refreshable()),
	)
	return payload.UserID, nil
}

// EnsureAccessToken returns a usable access token for the user, refreshing
// it first when expired. Concurrent callers for the same user share one
// refresh; the store is updated before the result is handed out.
func (s *Service) EnsureAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", domain.ErrNotConnected
	}
	if !googleadapter.IsExpired(cred.Expiry, s.cfg.TokenRefreshBuffer) {
		return cred.AccessToken, nil
	}
	if !cred.Refreshable() {
		return "", domain.ErrReauthRequired
	}

	token, err, _ := s.refreshes.Do(userID, func() (any, error) {
		// The flight outlives the request that started it: coalesced
		// waiters must not fail because the first caller went away.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		refreshed, err := s.oauth.Refresh(refreshCtx, cred.RefreshToken)
		if err != nil {
			s.metrics.RecordRefresh(false)
			s.log().Warn("token refresh failed", zap.String("user_id", userID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrReauthRequired, err)
		}
		if err := s.repo.UpdateAccessToken(refreshCtx, userID, refreshed.AccessToken, refreshed.Expiry); err != nil {
			s.metrics.RecordRefresh(false)
			return nil, err
		}
		s.metrics.RecordRefresh(true)
		return refreshed.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Status reports the user's authorization state without refreshing anything.
// The cheap existence probe runs first so unconnected users never pay for a
// decrypting read.
func (s *Service) Status(ctx context.Context, userID string) (domain.ConnectionStatus, error) {
	if !s.HasTokens(ctx, userID) {
		return domain.ConnectionStatus{}, nil
	}

	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.ConnectionStatus{}, err
	}
	if cred == nil {
		return domain.ConnectionStatus{}, nil
	}
	return domain.ConnectionStatus{
		Authorized:      true,
		HasRefreshToken: cred.Refreshable(),
		TokenExpired:    googleadapter.IsExpired(cred.Expiry, s.cfg.TokenRefreshBuffer),
	}, nil
}

// HasTokens reports whether a credential exists, trading correctness for
// availability: any store failure is logged and reported as false.
func (s *Service) HasTokens(ctx context.Context, userID string) bool {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		s.log().Warn("credential existence check failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return exists
}

// Revoke tells Google to invalidate the grant (best effort) and deletes the
// stored record. Revoking an unknown user succeeds.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}

	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if cred != nil {
		s.revokeUpstream(ctx, cred)
	}

	if _, err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	return nil
}

// Disconnect deletes the stored record and fails with ErrNotConnected when
// there was nothing to remove.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}
	removed, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrNotConnected
	}
	return nil
}

// CleanupExpired removes grants that can never be refreshed. Best effort:
// intended for the periodic sweeper, errors are returned for logging only.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredUnrefreshable(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep(n)
	return n, nil
}

// RunSweeper periodically garbage-collects unrefreshable credentials until
// ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				s.log().Warn("credential sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log().Info("swept unrefreshable credentials", zap.Int64("removed", n))
			}
		}
	}
}

// revokeUpstream calls Google's revocation endpoint. The refresh token is
// preferred since revoking it invalidates the whole grant.
func (s *Service) revokeUpstream(ctx context.Context, cred *domain.Credential) {
	target := cred.RefreshToken
	if target == "" {
		target = cred.AccessToken
	}
	if target == "" {
		return
	}

	form := url.Values{"token": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		s.log().Warn("build revoke request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log().Warn("upstream token revocation failed", zap.String("user_id", cred.UserID), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log().Warn("upstream token revocation rejected",
			zap.String("user_id", cred.UserID),
			zap.Int("status", resp.StatusCode),
		)
	}
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
