package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anbudportalen/tender-service/internal/models"
	"github.com/anbudportalen/tender-service/internal/versioning"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentVersionRepository is the persistence port for document version
// chains. Versions are append-only; "current" is derived from the highest
// version number, never stored.
type DocumentVersionRepository interface {
	CreateVersion(ctx context.Context, documentID string, data models.VersionData, actor models.Actor, context, contextID, changeReason string, now time.Time) (*models.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	ListByContext(ctx context.Context, context, contextID string) ([]models.DocumentVersion, error)
}

// PostgresDocumentVersionRepository implements DocumentVersionRepository
// over pgx.
type PostgresDocumentVersionRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresDocumentVersionRepository creates a new PostgresDocumentVersionRepository.
func NewPostgresDocumentVersionRepository(db *pgxpool.Pool) *PostgresDocumentVersionRepository {
	return &PostgresDocumentVersionRepository{DB: db}
}

const documentVersionColumns = `id, document_id, version_number, name, url, storage_path, size,
	content_type, context, context_id, uploaded_by, uploaded_by_name, uploaded_at,
	COALESCE(change_reason, ''), changes`

func scanDocumentVersion(row pgx.Row) (*models.DocumentVersion, error) {
	var v models.DocumentVersion
	var changes []byte
	err := row.Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&v.Name,
		&v.URL,
		&v.StoragePath,
		&v.Size,
		&v.ContentType,
		&v.Context,
		&v.ContextID,
		&v.UploadedBy,
		&v.UploadedByName,
		&v.UploadedAt,
		&v.ChangeReason,
		&changes,
	)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &v.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode version changes: %w", err)
		}
	}
	return &v, nil
}

// CreateVersion appends a new version to the chain. The whole operation —
// reading the head, computing the next version number and the diff,
// inserting the row — runs in one transaction holding an advisory lock on
// the chain, so concurrent uploads cannot mint duplicate version numbers.
func (r *PostgresDocumentVersionRepository) CreateVersion(ctx context.Context, documentID string, data models.VersionData, actor models.Actor, docContext, contextID, changeReason string, now time.Time) (*models.DocumentVersion, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, documentID)
	if err != nil {
		return nil, err
	}

	prev, err := scanDocumentVersion(tx.QueryRow(ctx,
		`SELECT `+documentVersionColumns+` FROM document_version
		 WHERE document_id = $1 ORDER BY version_number DESC LIMIT 1`, documentID))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		prev = nil
	}

	newVersion := models.DocumentVersion{
		ID:             uuid.New().String(),
		DocumentID:     documentID,
		VersionNumber:  1,
		Name:           data.Name,
		URL:            data.URL,
		StoragePath:    data.StoragePath,
		Size:           data.Size,
		ContentType:    data.ContentType,
		Context:        docContext,
		ContextID:      contextID,
		UploadedBy:     actor.ID,
		UploadedByName: actor.Name,
		UploadedAt:     now,
		ChangeReason:   changeReason,
		IsCurrent:      true,
	}
	if prev != nil {
		newVersion.VersionNumber = prev.VersionNumber + 1
	}
	newVersion.Changes = versioning.ComputeChanges(prev, &newVersion)

	changes, err := json.Marshal(newVersion.Changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode version changes: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO document_version (id, document_id, version_number, name, url, storage_path,
			size, content_type, context, context_id, uploaded_by, uploaded_by_name, uploaded_at,
			change_reason, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		newVersion.ID,
		newVersion.DocumentID,
		newVersion.VersionNumber,
		newVersion.Name,
		newVersion.URL,
		newVersion.StoragePath,
		newVersion.Size,
		newVersion.ContentType,
		newVersion.Context,
		newVersion.ContextID,
		newVersion.UploadedBy,
		newVersion.UploadedByName,
		newVersion.UploadedAt,
		newVersion.ChangeReason,
		changes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &newVersion, nil
}

// ListVersions returns every version in the chain, newest first, with
// IsCurrent set on the head.
func (r *PostgresDocumentVersionRepository) ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+documentVersionColumns+` FROM document_version
		 WHERE document_id = $1 ORDER BY version_number DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.DocumentVersion
	for rows.Next() {
		v, err := scanDocumentVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(versions) > 0 {
		versions[0].IsCurrent = true
	}
	return versions, nil
}

// ListByContext returns the current version of every document attached to
// the given owner (tender, bid or complaint).
func (r *PostgresDocumentVersionRepository) ListByContext(ctx context.Context, docContext, contextID string) ([]models.DocumentVersion, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+documentVersionColumns+` FROM document_version dv
		 WHERE context = $1 AND context_id = $2
		   AND version_number = (SELECT MAX(version_number) FROM document_version
		                         WHERE document_id = dv.document_id)
		 ORDER BY uploaded_at DESC`, docContext, contextID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.DocumentVersion
	for rows.Next() {
		v, err := scanDocumentVersion(rows)
		if err != nil {
			return nil, err
		}
		v.IsCurrent = true
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}
