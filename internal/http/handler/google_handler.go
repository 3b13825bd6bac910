package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/export"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/tokens"
)

const (
	successPath = "/settings?google=connected"
	errorPath   = "/settings?google=error&error="
)

// GoogleHandler exposes the OAuth lifecycle and Docs export endpoints.
type GoogleHandler struct {
	Tokens *tokens.Service
	Export *export.Service

	cfg       config.Config
	logger    *zap.Logger
	startedAt time.Time
}

// NewGoogleHandler creates the handler set.
func NewGoogleHandler(tokenSvc *tokens.Service, exportSvc *export.Service, cfg config.Config, logger *zap.Logger) *GoogleHandler {
	return &GoogleHandler{
		Tokens:    tokenSvc,
		Export:    exportSvc,
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Health reports liveness.
func (h *GoogleHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   h.cfg.ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

// BeginAuth returns the Google consent URL for the user.
func (h *GoogleHandler) BeginAuth(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	authURL, err := h.Tokens.BeginAuthorization(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}

// Callback completes the authorization-code exchange and sends the browser
// back to the frontend. Failures redirect with a coarse reason code; raw
// provider errors are never surfaced here.
func (h *GoogleHandler) Callback(c *gin.Context) {
	if reason := strings.TrimSpace(c.Query("error")); reason != "" {
		h.redirectError(c, reason)
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	state := strings.TrimSpace(c.Query("state"))
	if code == "" || state == "" {
		h.redirectError(c, "missing_parameters")
		return
	}

	userID, err := h.Tokens.CompleteAuthorization(c.Request.Context(), code, state)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			h.redirectError(c, "invalid_state")
			return
		}
		h.logger.Error("oauth callback failed", zap.Error(err))
		h.redirectError(c, "exchange_failed")
		return
	}

	h.logger.Info("oauth callback completed", zap.String("user_id", userID))
	c.Redirect(http.StatusFound, h.cfg.FrontendURL+successPath)
}

// CreateDoc exports summary content into a new Google Doc.
func (h *GoogleHandler) CreateDoc(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId"`
		Content  string `json:"content"`
		Title    string `json:"title"`
		FolderID string `json:"folderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		badRequest(c, "userId is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		badRequest(c, "content is required")
		return
	}

	doc, err := h.Export.CreateDocument(c.Request.Context(), export.CreateDocumentInput{
		UserID:   req.UserID,
		Content:  req.Content,
		Title:    req.Title,
		FolderID: req.FolderID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "document": doc})
}

// Status reports the user's authorization state.
func (h *GoogleHandler) Status(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	status, err := h.Tokens.Status(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Revoke invalidates and deletes the user's grant. Idempotent: revoking a
// user with no stored credential still succeeds.
func (h *GoogleHandler) Revoke(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		badRequest(c, "userId is required")
		return
	}

	if err := h.Tokens.Revoke(c.Request.Context(), req.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Google access revoked."})
}

// ListDocs returns the user's documents, newest modified first.
func (h *GoogleHandler) ListDocs(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	pageSize := int64(10)
	if raw := strings.TrimSpace(c.Query("pageSize")); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			pageSize = n
		}
	}

	docs, err := h.Export.ListDocuments(c.Request.Context(), userID, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "documents": docs})
}

// CreateFolder creates a Drive folder for grouping exports.
func (h *GoogleHandler) CreateFolder(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		badRequest(c, "userId is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name is required")
		return
	}

	folderID, err := h.Export.CreateFolder(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "folderId": folderID})
}

// Disconnect removes the stored credential. Unlike Revoke it reports 404
// when the account was never connected.
func (h *GoogleHandler) Disconnect(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	if err := h.Tokens.Disconnect(c.Request.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":      "Not Found",
				"message":    "No Google account connected for this user.",
				"statusCode": http.StatusNotFound,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Google account disconnected."})
}

func (h *GoogleHandler) redirectError(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.cfg.FrontendURL+errorPath+url.QueryEscape(reason))
}

// respondError maps domain errors to the generic JSON error shape. Upstream
// provider errors are logged server-side and reported as a 500 with a
// neutral message.
func (h *GoogleHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		badRequest(c, reason(err))
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrReauthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":        "Unauthorized",
			"message":      "Google authorization required.",
			"statusCode":   http.StatusUnauthorized,
			"requiresAuth": true,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "Not Found",
			"message":    "Credential not found.",
			"statusCode": http.StatusNotFound,
		})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal Server Error",
			"message":    "Something went wrong. Please try again.",
			"statusCode": http.StatusInternalServerError,
		})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "Bad Request",
		"message":    message,
		"statusCode": http.StatusBadRequest,
	})
}

// reason strips the sentinel prefix from a wrapped validation error so the
// client sees only the human-readable part.
func reason(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
