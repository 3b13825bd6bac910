// Package export turns video summaries into Google Docs on behalf of a user.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	googleadapter "github.com/Thiwanka-Sandakalum/vidsage-google/internal/adapter/google"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/domain"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/service/tokens"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/telemetry"
)

// CreateDocumentInput is the export request for one summary.
type CreateDocumentInput struct {
	UserID   string
	Content  string
	Title    string
	FolderID string
}

// Service orchestrates the guarded token lookup and the Docs calls.
type Service struct {
	tokens  *tokens.Service
	docs    googleadapter.DocsClient
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewService wires the export service.
func NewService(tokenSvc *tokens.Service, docs googleadapter.DocsClient, metrics *telemetry.Metrics, logger *zap.Logger) *Service {
	return &Service{
		tokens:  tokenSvc,
		docs:    docs,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateDocument writes the summary into a new Google Doc. The access token
// is validated (and refreshed if needed) before any Docs call is made.
func (s *Service) CreateDocument(ctx context.Context, in CreateDocumentInput) (*googleadapter.DocumentInfo, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidRequest)
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "VidSage Summary - " + time.Now().Format("2006-01-02 15:04")
	}

	doc, err := s.docs.CreateDocument(ctx, googleadapter.CreateDocumentInput{
		AccessToken: accessToken,
		Title:       title,
		Content:     in.Content,
		FolderID:    in.FolderID,
	})
	if err != nil {
		s.metrics.RecordExportFailure()
		return nil, err
	}

	s.metrics.RecordDocumentCreated()
	s.logger.Info("document exported",
		zap.String("user_id", in.UserID),
		zap.String("document_id", doc.DocumentID),
	)
	return doc, nil
}

// ListDocuments returns the user's documents, newest modified first.
func (s *Service) ListDocuments(ctx context.Context, userID string, pageSize int64) ([]googleadapter.DriveFile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidRequest)
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.docs.ListDocuments(ctx, accessToken, pageSize)
}

// CreateFolder creates a Drive folder for grouping exported summaries.
func (s *Service) CreateFolder(ctx context.Context, userID, name string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: userId and name are required", domain.ErrInvalidRequest)
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.docs.CreateFolder(ctx, accessToken, name)
}
