package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	googleadapter "github.com/Thiwanka-Sandakalum/vidsage-google/internal/adapter/google"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/export"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/tokens"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/telemetry"
)

func TestHealth(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "vidsage-google", body["service"])
}

func TestBeginAuthRequiresUserID(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/auth/google", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "Bad Request", body["error"])
	require.Equal(t, float64(http.StatusBadRequest), body["statusCode"])
}

func TestBeginAuthReturnsConsentURL(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/auth/google?userId=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Contains(t, body["authUrl"], "https://accounts.fake/consent?state=")
}

func TestCallbackProviderDenial(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/auth/google/callback?error=access_denied", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://frontend.test/settings?google=error&error=access_denied", rec.Header().Get("Location"))
	require.Empty(t, h.repo.creds, "a denied consent must not write to the store")
}

func TestCallbackMissingParameters(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/auth/google/callback?code=abc", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "error=missing_parameters")
}

func TestCallbackInvalidState(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/auth/google/callback?code=abc&state=garbage", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
}

func TestCallbackSuccessRedirectsToFrontend(t *testing.T) {
	h := newHandlerHarness(t)

	begin := h.do(http.MethodGet, "/auth/google?userId=user-1", "")
	require.Equal(t, http.StatusOK, begin.Code)
	authURL, _ := decode(t, begin)["authUrl"].(string)
	state := authURL[strings.Index(authURL, "state=")+len("state="):]

	h.oauth.exchangeToken = &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}

	rec := h.do(http.MethodGet, "/auth/google/callback?code=auth-code&state="+state, "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://frontend.test/settings?google=connected", rec.Header().Get("Location"))
	require.Contains(t, h.repo.creds, "user-1")
}

func TestCreateDocWithoutTokens(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodPost, "/google/docs", `{"userId":"stranger","content":"summary text"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "Unauthorized", body["error"])
	require.Equal(t, true, body["requiresAuth"])
	require.Equal(t, float64(http.StatusUnauthorized), body["statusCode"])
}

func TestCreateDocValidation(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodPost, "/google/docs", `{"content":"no user"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/google/docs", `{"userId":"user-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/google/docs", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDocRefreshesExpiredToken(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:       "user-1",
		AccessToken:  "access-stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	}
	h.oauth.refreshToken = &oauth2.Token{
		AccessToken: "access-fresh",
		Expiry:      time.Now().Add(time.Hour),
	}

	rec := h.do(http.MethodPost, "/google/docs", `{"userId":"user-1","content":"summary text","title":"My Summary"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	doc, ok := body["document"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "doc-1", doc["documentId"])

	require.Equal(t, 1, h.oauth.refreshed, "expired token triggers exactly one refresh")
	require.Equal(t, "access-fresh", h.docs.lastAccessToken, "docs call must use the refreshed token")
	require.Equal(t, "My Summary", h.docs.lastTitle)
}

func TestCreateDocReauthRequired(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:      "user-1",
		AccessToken: "access-stale",
		Expiry:      time.Now().Add(-time.Minute),
	}

	rec := h.do(http.MethodPost, "/google/docs", `{"userId":"user-1","content":"summary text"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, true, decode(t, rec)["requiresAuth"])
	require.Equal(t, 0, h.oauth.refreshed)
}

func TestStatusConnected(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:       "user-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(24 * time.Hour),
	}

	rec := h.do(http.MethodGet, "/google/status?userId=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, true, body["authorized"])
	require.Equal(t, true, body["hasRefreshToken"])
	require.Equal(t, false, body["tokenExpired"])
}

func TestStatusNotConnected(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodGet, "/google/status?userId=stranger", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, false, body["authorized"])
	require.Equal(t, false, body["hasRefreshToken"])
	require.Equal(t, false, body["tokenExpired"])
}

func TestRevokeUnknownUserSucceeds(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(http.MethodDelete, "/google/revoke", `{"userId":"stranger"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["success"])
}

func TestListDocs(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:      "user-1",
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}
	h.docs.files = []googleadapter.DriveFile{
		{ID: "doc-1", Name: "Summary A"},
		{ID: "doc-2", Name: "Summary B"},
	}

	rec := h.do(http.MethodGet, "/google/docs/list?userId=user-1&pageSize=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	docs, ok := body["documents"].([]any)
	require.True(t, ok)
	require.Len(t, docs, 2)
	require.Equal(t, int64(5), h.docs.lastPageSize)
}

func TestDisconnect(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:      "user-1",
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}

	rec := h.do(http.MethodDelete, "/google/disconnect?userId=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodDelete, "/google/disconnect?userId=user-1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not Found", decode(t, rec)["error"])
}

func TestCreateFolder(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.creds["user-1"] = domain.Credential{
		UserID:      "user-1",
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}

	rec := h.do(http.MethodPost, "/google/folders", `{"userId":"user-1","name":"VidSage"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "folder-1", body["folderId"])

	rec = h.do(http.MethodPost, "/google/folders", `{"userId":"user-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- Test harness ----

type handlerHarness struct {
	engine *gin.Engine
	repo   *memCredentialRepo
	oauth  *stubOAuthClient
	docs   *stubDocsClient
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		ServiceName:        "vidsage-google",
		FrontendURL:        "http://frontend.test",
		StateTTL:           10 * time.Minute,
		TokenRefreshBuffer: 5 * time.Minute,
	}

	repo := &memCredentialRepo{creds: map[string]domain.Credential{}}
	nonces := &memNonceStore{nonces: map[string]struct{}{}}
	oauth := &stubOAuthClient{}
	docs := &stubDocsClient{}
	metrics := telemetry.NewMetrics()
	logger := zap.NewNop()

	tokenSvc := tokens.NewService(repo, nonces, oauth, tokens.NewStateSigner("state-secret", cfg.StateTTL), metrics, cfg, logger)
	exportSvc := export.NewService(tokenSvc, docs, metrics, logger)
	h := NewGoogleHandler(tokenSvc, exportSvc, cfg, logger)

	engine := gin.New()
	engine.GET("/health", h.Health)
	engine.GET("/auth/google", h.BeginAuth)
	engine.GET("/auth/google/callback", h.Callback)
	engine.POST("/google/docs", h.CreateDoc)
	engine.GET("/google/docs/list", h.ListDocs)
	engine.POST("/google/folders", h.CreateFolder)
	engine.GET("/google/status", h.Status)
	engine.DELETE("/google/revoke", h.Revoke)
	engine.DELETE("/google/disconnect", h.Disconnect)

	return &handlerHarness{engine: engine, repo: repo, oauth: oauth, docs: docs}
}

func (h *handlerHarness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type memCredentialRepo struct {
	mu    sync.Mutex
	creds map[string]domain.Credential
}

func (m *memCredentialRepo) Save(_ context.Context, cred domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.creds[cred.UserID]; ok && cred.RefreshToken == "" {
		cred.RefreshToken = existing.RefreshToken
	}
	m.creds[cred.UserID] = cred
	return nil
}

func (m *memCredentialRepo) Get(_ context.Context, userID string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred, ok := m.creds[userID]; ok {
		copied := cred
		return &copied, nil
	}
	return nil, nil
}

func (m *memCredentialRepo) UpdateAccessToken(_ context.Context, userID, accessToken string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return domain.ErrNotFound
	}
	cred.AccessToken = accessToken
	cred.Expiry = expiry
	m.creds[userID] = cred
	return nil
}

func (m *memCredentialRepo) Delete(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[userID]; !ok {
		return false, nil
	}
	delete(m.creds, userID)
	return true, nil
}

func (m *memCredentialRepo) Exists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[userID]
	return ok, nil
}

func (m *memCredentialRepo) DeleteExpiredUnrefreshable(_ context.Context) (int64, error) {
	return 0, nil
}

type memNonceStore struct {
	mu     sync.Mutex
	nonces map[string]struct{}
}

func (m *memNonceStore) SaveNonce(_ context.Context, nonce string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[nonce] = struct{}{}
	return nil
}

func (m *memNonceStore) ConsumeNonce(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nonces[nonce]; !ok {
		return false, nil
	}
	delete(m.nonces, nonce)
	return true, nil
}

type stubOAuthClient struct {
	exchangeToken *oauth2.Token
	refreshToken  *oauth2.Token
	refreshed     int
}

func (s *stubOAuthClient) AuthCodeURL(state string) string {
	return "https://accounts.fake/consent?state=" + state
}

func (s *stubOAuthClient) Exchange(context.Context, string) (*oauth2.Token, error) {
	if s.exchangeToken == nil {
		return nil, fmt.Errorf("exchange not configured")
	}
	return s.exchangeToken, nil
}

func (s *stubOAuthClient) Refresh(context.Context, string) (*oauth2.Token, error) {
	s.refreshed++
	if s.refreshToken == nil {
		return nil, fmt.Errorf("refresh not configured")
	}
	return s.refreshToken, nil
}

type stubDocsClient struct {
	files           []googleadapter.DriveFile
	lastAccessToken string
	lastTitle       string
	lastPageSize    int64
}

func (s *stubDocsClient) CreateDocument(_ context.Context, in googleadapter.CreateDocumentInput) (*googleadapter.DocumentInfo, error) {
	s.lastAccessToken = in.AccessToken
	s.lastTitle = in.Title
	return &googleadapter.DocumentInfo{
		DocumentID:  "doc-1",
		DocumentURL: "https://docs.google.com/document/d/doc-1/edit",
		Title:       in.Title,
	}, nil
}

func (s *stubDocsClient) ListDocuments(_ context.Context, accessToken string, pageSize int64) ([]googleadapter.DriveFile, error) {
	s.lastAccessToken = accessToken
	s.lastPageSize = pageSize
	return s.files, nil
}

func (s *stubDocsClient) CreateFolder(_ context.Context, accessToken, _ string) (string, error) {
	s.lastAccessToken = accessToken
	return "folder-1", nil
}
