package google

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	docMimeType    = "application/vnd.google-apps.document"
	folderMimeType = "application/vnd.google-apps.folder"
)

// CreateDocumentInput carries everything needed to create and fill a doc.
type CreateDocumentInput struct {
	AccessToken string
	Title       string
	Content     string
	FolderID    string
}

// DocumentInfo identifies a created document.
type DocumentInfo struct {
	DocumentID  string `json:"documentId"`
	DocumentURL string `json:"documentUrl"`
	Title       string `json:"title"`
}

// DriveFile is one entry from a document listing.
type DriveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	CreatedTime  string `json:"createdTime"`
	ModifiedTime string `json:"modifiedTime"`
}

// DocsClient drives the Google Docs and Drive APIs with a caller-supplied
// valid access token. Token validity is the caller's responsibility; this
// client never refreshes.
type DocsClient interface {
	CreateDocument(ctx context.Context, in CreateDocumentInput) (*DocumentInfo, error)
	ListDocuments(ctx context.Context, accessToken string, pageSize int64) ([]DriveFile, error)
	CreateFolder(ctx context.Context, accessToken, name string) (string, error)
}

type docsClient struct {
	logger *zap.Logger
}

var _ DocsClient = (*docsClient)(nil)

// NewDocsClient constructs the default Docs/Drive client.
func NewDocsClient(logger *zap.Logger) DocsClient {
	return &docsClient{logger: logger}
}

// CreateDocument creates the document, optionally moves it into a folder,
// then inserts the content at the document start. If the content write fails
// after creation succeeded, the empty document is deleted again so the user
// is not left with an orphan.
func (c *docsClient) CreateDocument(ctx context.Context, in CreateDocumentInput) (*DocumentInfo, error) {
	docsSvc, driveSvc, err := c.services(ctx, in.AccessToken)
	if err != nil {
		return nil, err
	}

	doc, err := docsSvc.Documents.Create(&docs.Document{Title: in.Title}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if folder := strings.TrimSpace(in.FolderID); folder != "" {
		_, err = driveSvc.Files.Update(doc.DocumentId, nil).
			AddParents(folder).
			RemoveParents("root").
			Context(ctx).Do()
		if err != nil {
			c.rollback(ctx, driveSvc, doc.DocumentId)
			return nil, fmt.Errorf("move document to folder: %w", err)
		}
	}

	if in.Content != "" {
		_, err = docsSvc.Documents.BatchUpdate(doc.DocumentId, &docs.BatchUpdateDocumentRequest{
			Requests: []*docs.Request{{
				InsertText: &docs.InsertTextRequest{
					Text:     in.Content,
					Location: &docs.Location{Index: 1},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			c.rollback(ctx, driveSvc, doc.DocumentId)
			return nil, fmt.Errorf("write document content: %w", err)
		}
	}

	return &DocumentInfo{
		DocumentID:  doc.DocumentId,
		DocumentURL: documentURL(doc.DocumentId),
		Title:       doc.Title,
	}, nil
}

// ListDocuments returns the user's documents, newest modified first.
func (c *docsClient) ListDocuments(ctx context.Context, accessToken string, pageSize int64) ([]DriveFile, error) {
	_, driveSvc, err := c.services(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = 10
	}

	list, err := driveSvc.Files.List().
		Q(fmt.Sprintf("mimeType='%s' and trashed=false", docMimeType)).
		OrderBy("modifiedTime desc").
		PageSize(pageSize).
		Fields("files(id, name, webViewLink, createdTime, modifiedTime)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	files := make([]DriveFile, 0, len(list.Files))
	for _, f := range list.Files {
		url := f.WebViewLink
		if url == "" {
			url = documentURL(f.Id)
		}
		files = append(files, DriveFile{
			ID:           f.Id,
			Name:         f.Name,
			URL:          url,
			CreatedTime:  f.CreatedTime,
			ModifiedTime: f.ModifiedTime,
		})
	}
	return files, nil
}

// CreateFolder creates a Drive folder and returns its id.
func (c *docsClient) CreateFolder(ctx context.Context, accessToken, name string) (string, error) {
	_, driveSvc, err := c.services(ctx, accessToken)
	if err != nil {
		return "", err
	}

	folder, err := driveSvc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return folder.Id, nil
}

func (c *docsClient) services(ctx context.Context, accessToken string) (*docs.Service, *drive.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	docsSvc, err := docs.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, nil, fmt.Errorf("build docs service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, nil, fmt.Errorf("build drive service: %w", err)
	}
	return docsSvc, driveSvc, nil
}

// rollback deletes a document left empty by a failed write. Best effort;
// a failed delete is logged and the original error still propagates.
func (c *docsClient) rollback(ctx context.Context, driveSvc *drive.Service, documentID string) {
	if err := driveSvc.Files.Delete(documentID).Context(ctx).Do(); err != nil {
		c.log().Warn("failed to delete orphan document", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (c *docsClient) log() *zap.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return zap.L()
}

func documentURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}
