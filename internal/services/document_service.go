package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/anbudportalen/tender-service/internal/blob"
	"github.com/anbudportalen/tender-service/internal/models"
	"github.com/anbudportalen/tender-service/internal/repository"
	"github.com/anbudportalen/tender-service/internal/versioning"

	"github.com/google/uuid"
)

// DocumentService maintains the append-only version chain for every
// uploaded document.
type DocumentService struct {
	Repo   repository.DocumentVersionRepository
	Blob   blob.Storage
	Logger *log.Logger

	// StrictReads propagates storage errors from read-only queries.
	// When false (the default) those queries degrade to an empty result,
	// keeping history display non-critical.
	StrictReads bool

	now func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(repo repository.DocumentVersionRepository, blobStore blob.Storage, logger *log.Logger) *DocumentService {
	return &DocumentService{Repo: repo, Blob: blobStore, Logger: logger, now: time.Now}
}

// UploadVersion stores the file bytes in the blob store and appends the
// resulting metadata as a new version. An empty documentID starts a new
// chain.
func (s *DocumentService) UploadVersion(ctx context.Context, documentID, filename string, body io.Reader, size int64, contentType string, actor models.Actor, docContext, contextID, changeReason string) (*models.DocumentVersion, error) {
	key := blob.StorageKey(docContext, contextID, filename)
	uploaded, err := s.Blob.Upload(ctx, key, body, size, contentType)
	if err != nil {
		s.Logger.Printf("blob upload for document %s failed: %v", documentID, err)
		return nil, models.NewErrorResponse(http.StatusInternalServerError, "kunne ikke laste opp filen")
	}

	return s.CreateVersion(ctx, documentID, models.VersionData{
		Name:        filename,
		URL:         uploaded.URL,
		StoragePath: uploaded.Path,
		Size:        uploaded.Size,
		ContentType: uploaded.ContentType,
	}, actor, docContext, contextID, changeReason)
}

// CreateVersion appends a metadata revision to the chain. Version numbers
// are gapless and start at 1; the first version records a synthetic
// "created" change.
func (s *DocumentService) CreateVersion(ctx context.Context, documentID string, data models.VersionData, actor models.Actor, docContext, contextID, changeReason string) (*models.DocumentVersion, error) {
	if documentID == "" {
		documentID = uuid.New().String()
	}
	version, err := s.Repo.CreateVersion(ctx, documentID, data, actor, docContext, contextID, changeReason, s.now())
	if err != nil {
		if resp, ok := err.(*models.ErrorResponse); ok {
			return nil, resp
		}
		s.Logger.Printf("creating version for document %s failed: %v", documentID, err)
		return nil, models.NewErrorResponse(http.StatusInternalServerError, "kunne ikke lagre dokumentversjonen")
	}
	return version, nil
}

// GetVersions returns the chain newest-first. A document without versions
// yields an empty list, never an error.
func (s *DocumentService) GetVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	versions, err := s.Repo.ListVersions(ctx, documentID)
	if err != nil {
		if s.StrictReads {
			return nil, err
		}
		s.Logger.Printf("listing versions for document %s failed: %v", documentID, err)
		return nil, nil
	}
	return versions, nil
}

// GetCurrentVersion returns the head of the chain, or nil when the document
// has no versions.
func (s *DocumentService) GetCurrentVersion(ctx context.Context, documentID string) (*models.DocumentVersion, error) {
	versions, err := s.GetVersions(ctx, documentID)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return &versions[0], nil
}

// GetVersionByNumber returns the matching version or nil. Chains are short,
// so this filters the full list.
func (s *DocumentService) GetVersionByNumber(ctx context.Context, documentID string, n int) (*models.DocumentVersion, error) {
	versions, err := s.GetVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].VersionNumber == n {
			return &versions[i], nil
		}
	}
	return nil, nil
}

// CompareVersions is a pure metadata comparison between two versions.
func (s *DocumentService) CompareVersions(v1, v2 *models.DocumentVersion) models.VersionComparison {
	return versioning.Compare(v1, v2)
}

// GetChangeHistory flattens every version's changes into one list, newest
// first. The oldest version contributes a synthetic "created" entry if it
// has no recorded changes, so the history is never empty once a version
// exists.
func (s *DocumentService) GetChangeHistory(ctx context.Context, documentID string) ([]models.ChangeHistoryEntry, error) {
	versions, err := s.GetVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var history []models.ChangeHistoryEntry
	for i, v := range versions {
		changes := v.Changes
		if len(changes) == 0 && i == len(versions)-1 {
			changes = []models.VersionChange{versioning.CreatedChange(v.Name)}
		}
		for _, c := range changes {
			history = append(history, models.ChangeHistoryEntry{
				Version:      v.VersionNumber,
				Timestamp:    v.UploadedAt,
				User:         v.UploadedByName,
				UserID:       v.UploadedBy,
				Change:       describeChange(c),
				ChangeReason: v.ChangeReason,
			})
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].Timestamp.Equal(history[j].Timestamp) {
			return history[i].Timestamp.After(history[j].Timestamp)
		}
		return history[i].Version > history[j].Version
	})
	return history, nil
}

// RestoreVersion brings the metadata of an earlier version back as a brand
// new version at the head of the chain. History is never rewound or
// destroyed: restoring version 2 of a 5-version chain creates version 6.
func (s *DocumentService) RestoreVersion(ctx context.Context, documentID string, versionNumber int, actor models.Actor, docContext, contextID string) (*models.DocumentVersion, error) {
	// A restore is a mutation, so the lookup must not degrade silently.
	versions, err := s.Repo.ListVersions(ctx, documentID)
	if err != nil {
		s.Logger.Printf("listing versions for restore of document %s failed: %v", documentID, err)
		return nil, models.NewErrorResponse(http.StatusInternalServerError, "kunne ikke hente dokumentversjonene")
	}

	var target *models.DocumentVersion
	for i := range versions {
		if versions[i].VersionNumber == versionNumber {
			target = &versions[i]
			break
		}
	}
	if target == nil {
		return nil, models.NewErrorResponse(http.StatusNotFound, "versjon ikke funnet")
	}

	return s.CreateVersion(ctx, documentID, models.VersionData{
		Name:        target.Name,
		URL:         target.URL,
		StoragePath: target.StoragePath,
		Size:        target.Size,
		ContentType: target.ContentType,
	}, actor, docContext, contextID, fmt.Sprintf("gjenopprettet fra versjon %d", versionNumber))
}

// ListDocuments returns the current version of every document attached to
// the given owner.
func (s *DocumentService) ListDocuments(ctx context.Context, docContext, contextID string) ([]models.DocumentVersion, error) {
	docs, err := s.Repo.ListByContext(ctx, docContext, contextID)
	if err != nil {
		if s.StrictReads {
			return nil, err
		}
		s.Logger.Printf("listing documents for %s %s failed: %v", docContext, contextID, err)
		return nil, nil
	}
	return docs, nil
}

func describeChange(c models.VersionChange) string {
	switch c.Type {
	case models.ChangeCreated:
		return "dokument opprettet: " + c.NewValue
	default:
		return fmt.Sprintf("%s endret fra %q til %q", c.Field, c.OldValue, c.NewValue)
	}
}
