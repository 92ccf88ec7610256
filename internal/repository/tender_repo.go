package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anbudportalen/tender-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// TenderRepository is the persistence port for tender aggregates.
type TenderRepository interface {
	CreateTender(ctx context.Context, req models.TenderRequest, actor models.Actor, now time.Time) (*models.Tender, error)
	GetTender(ctx context.Context, tenderID string) (*models.Tender, error)
	GetUserTenders(ctx context.Context, ownerID string, limit, offset int, statuses []string) ([]models.Tender, error)
	UpdateTender(ctx context.Context, tenderID string, upd models.TenderUpdate) (*models.Tender, error)
	UpdateStatus(ctx context.Context, tenderID string, status models.TenderStatus, event models.TenderEvent) (*models.Tender, error)
	CloseExpired(ctx context.Context, ownerID string, now time.Time) (int, error)
	DeleteTender(ctx context.Context, tenderID string) ([]string, error)
	AddInvitedSupplier(ctx context.Context, inv models.InvitedSupplier) (*models.InvitedSupplier, error)
	AddQuestion(ctx context.Context, q models.QAEntry) (*models.QAEntry, error)
	AnswerQuestion(ctx context.Context, tenderID, qaID, answer string, now time.Time) (*models.QAEntry, error)
	GetEvents(ctx context.Context, tenderID string) ([]models.TenderEvent, error)
}

// PostgresTenderRepository implements TenderRepository over pgx.
type PostgresTenderRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresTenderRepository creates a new PostgresTenderRepository.
func NewPostgresTenderRepository(db *pgxpool.Pool) *PostgresTenderRepository {
	return &PostgresTenderRepository{DB: db}
}

const tenderColumns = `id, title, description, contract_standard, status, price,
	publish_date, question_deadline, deadline, created_at, created_by, created_by_name, project_id,
	COALESCE(awarded_bid_id, ''), awarded_at, standstill_start_date, standstill_end_date`

func scanTender(row pgx.Row) (*models.Tender, error) {
	var t models.Tender
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.ContractStandard,
		&t.Status,
		&t.Price,
		&t.PublishDate,
		&t.QuestionDeadline,
		&t.Deadline,
		&t.CreatedAt,
		&t.CreatedBy,
		&t.CreatedByName,
		&t.ProjectID,
		&t.AwardedBidID,
		&t.AwardedAt,
		&t.StandstillStartDate,
		&t.StandstillEndDate,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTender inserts a new tender aggregate.
func (r *PostgresTenderRepository) CreateTender(ctx context.Context, req models.TenderRequest, actor models.Actor, now time.Time) (*models.Tender, error) {
	status := req.Status
	if status == "" {
		status = models.DraftTender
	}
	newTender := models.Tender{
		ID:               uuid.New().String(),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		ContractStandard: req.ContractStandard,
		Status:           status,
		Price:            req.Price,
		PublishDate:      req.PublishDate,
		QuestionDeadline: req.QuestionDeadline,
		Deadline:         req.Deadline,
		CreatedAt:        now,
		CreatedBy:        actor.ID,
		CreatedByName:    actor.Name,
		ProjectID:        req.ProjectID,
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tender (id, title, description, contract_standard, status, price,
			publish_date, question_deadline, deadline, created_at, created_by, created_by_name, project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		newTender.ID,
		newTender.Title,
		newTender.Description,
		newTender.ContractStandard,
		newTender.Status,
		newTender.Price,
		newTender.PublishDate,
		newTender.QuestionDeadline,
		newTender.Deadline,
		newTender.CreatedAt,
		newTender.CreatedBy,
		newTender.CreatedByName,
		newTender.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tender: %w", err)
	}

	if err := insertEvent(ctx, tx, models.TenderEvent{
		TenderID:  newTender.ID,
		Action:    "created",
		ActorID:   actor.ID,
		ActorName: actor.Name,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &newTender, nil
}

// GetTender loads the full aggregate: the tender row plus its bids,
// invitation list and Q&A.
func (r *PostgresTenderRepository) GetTender(ctx context.Context, tenderID string) (*models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tender WHERE id = $1`
	tender, err := scanTender(r.DB.QueryRow(ctx, query, tenderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
		}
		return nil, err
	}

	tender.Bids, err = r.getBids(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	tender.InvitedSuppliers, err = r.getInvitedSuppliers(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	tender.QA, err = r.getQA(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	return tender, nil
}

func (r *PostgresTenderRepository) getBids(ctx context.Context, tenderID string) ([]models.Bid, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tender_id, supplier_id, company_name, price, price_structure,
			hourly_rate, estimated_hours, submitted_at, score, COALESCE(notes, ''), status
		FROM bid WHERE tender_id = $1 ORDER BY submitted_at`, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(
			&b.ID,
			&b.TenderID,
			&b.SupplierID,
			&b.CompanyName,
			&b.Price,
			&b.PriceStructure,
			&b.HourlyRate,
			&b.EstimatedHours,
			&b.SubmittedAt,
			&b.Score,
			&b.Notes,
			&b.Status); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (r *PostgresTenderRepository) getInvitedSuppliers(ctx context.Context, tenderID string) ([]models.InvitedSupplier, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tender_id, supplier_id, company_name, email, invited_at
		FROM invited_supplier WHERE tender_id = $1 ORDER BY invited_at`, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invited []models.InvitedSupplier
	for rows.Next() {
		var inv models.InvitedSupplier
		if err := rows.Scan(&inv.ID, &inv.TenderID, &inv.SupplierID, &inv.CompanyName, &inv.Email, &inv.InvitedAt); err != nil {
			return nil, err
		}
		invited = append(invited, inv)
	}
	return invited, rows.Err()
}

func (r *PostgresTenderRepository) getQA(ctx context.Context, tenderID string) ([]models.QAEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tender_id, question, COALESCE(answer, ''), asked_by, asked_at, answered_at
		FROM qa_entry WHERE tender_id = $1 ORDER BY asked_at`, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qa []models.QAEntry
	for rows.Next() {
		var q models.QAEntry
		if err := rows.Scan(&q.ID, &q.TenderID, &q.Question, &q.Answer, &q.AskedBy, &q.AskedAt, &q.AnsweredAt); err != nil {
			return nil, err
		}
		qa = append(qa, q)
	}
	return qa, rows.Err()
}

// GetUserTenders returns the tenders owned by a sender, optionally filtered
// by status.
func (r *PostgresTenderRepository) GetUserTenders(ctx context.Context, ownerID string, limit, offset int, statuses []string) ([]models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tender WHERE created_by = $1`
	args := []interface{}{ownerID}
	argIndex := 2

	if len(statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statuses))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenders []models.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, err
		}
		tenders = append(tenders, *t)
	}
	return tenders, rows.Err()
}

// UpdateTender applies a typed patch to the tender row.
func (r *PostgresTenderRepository) UpdateTender(ctx context.Context, tenderID string, upd models.TenderUpdate) (*models.Tender, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	addUpdate := func(column string, value interface{}) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if upd.Title != nil {
		addUpdate("title", strings.TrimSpace(*upd.Title))
	}
	if upd.Description != nil {
		addUpdate("description", *upd.Description)
	}
	if upd.ContractStandard != nil {
		addUpdate("contract_standard", *upd.ContractStandard)
	}
	if upd.Price != nil {
		addUpdate("price", *upd.Price)
	}
	if upd.PublishDate != nil {
		addUpdate("publish_date", *upd.PublishDate)
	}
	if upd.QuestionDeadline != nil {
		addUpdate("question_deadline", *upd.QuestionDeadline)
	}
	if upd.Deadline != nil {
		addUpdate("deadline", *upd.Deadline)
	}

	if len(updates) == 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "ingen felter å oppdatere")
	}

	query := "UPDATE tender SET " + strings.Join(updates, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", argIndex) + tenderColumns
	args = append(args, tenderID)

	tender, err := scanTender(r.DB.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
		}
		return nil, err
	}
	return tender, nil
}

// UpdateStatus sets the tender status and appends the transition to the
// event history in one transaction.
func (r *PostgresTenderRepository) UpdateStatus(ctx context.Context, tenderID string, status models.TenderStatus, event models.TenderEvent) (*models.Tender, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `UPDATE tender SET status = $1 WHERE id = $2 RETURNING ` + tenderColumns
	tender, err := scanTender(tx.QueryRow(ctx, query, status, tenderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
		}
		return nil, err
	}

	event.TenderID = tenderID
	if err := insertEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return tender, nil
}

// CloseExpired transitions every open tender owned by ownerID whose deadline
// has passed to closed, and returns how many were closed. Running it again
// is a no-op.
func (r *PostgresTenderRepository) CloseExpired(ctx context.Context, ownerID string, now time.Time) (int, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE tender SET status = $1
		WHERE created_by = $2 AND status = $3 AND deadline < $4
		RETURNING id`,
		models.ClosedTender, ownerID, models.OpenTender, now)
	if err != nil {
		return 0, err
	}

	var closedIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		closedIDs = append(closedIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range closedIDs {
		if err := insertEvent(ctx, tx, models.TenderEvent{
			TenderID:  id,
			Action:    "closed",
			ActorID:   "system",
			ActorName: "system",
			Note:      "tilbudsfrist utløpt",
			CreatedAt: now,
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(closedIDs), nil
}

// DeleteTender removes the whole aggregate and returns the storage paths of
// every blob that belonged to it, so the caller can clean up the blob store.
func (r *PostgresTenderRepository) DeleteTender(ctx context.Context, tenderID string) ([]string, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT storage_path FROM document_version
		WHERE (context = $1 AND context_id = $2)
		   OR (context = $3 AND context_id IN (SELECT id::text FROM bid WHERE tender_id = $2::uuid))`,
		models.TenderContext, tenderID, models.BidContext)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM document_version WHERE (context = $1 AND context_id = $2)
			OR (context = $3 AND context_id IN (SELECT id::text FROM bid WHERE tender_id = $2::uuid))`,
		models.TenderContext, tenderID, models.BidContext)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`DELETE FROM qa_entry WHERE tender_id = $1`,
		`DELETE FROM invited_supplier WHERE tender_id = $1`,
		`DELETE FROM tender_event WHERE tender_id = $1`,
		`DELETE FROM bid WHERE tender_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, tenderID); err != nil {
			return nil, err
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tender WHERE id = $1`, tenderID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return paths, nil
}

// AddInvitedSupplier appends a supplier to the invitation list.
func (r *PostgresTenderRepository) AddInvitedSupplier(ctx context.Context, inv models.InvitedSupplier) (*models.InvitedSupplier, error) {
	inv.ID = uuid.New().String()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO invited_supplier (id, tender_id, supplier_id, company_name, email, invited_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.TenderID, inv.SupplierID, inv.CompanyName, inv.Email, inv.InvitedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invited supplier: %w", err)
	}
	return &inv, nil
}

// AddQuestion appends a supplier question.
func (r *PostgresTenderRepository) AddQuestion(ctx context.Context, q models.QAEntry) (*models.QAEntry, error) {
	q.ID = uuid.New().String()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO qa_entry (id, tender_id, question, asked_by, asked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.TenderID, q.Question, q.AskedBy, q.AskedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert question: %w", err)
	}
	return &q, nil
}

// AnswerQuestion records the sender's answer on an existing question.
func (r *PostgresTenderRepository) AnswerQuestion(ctx context.Context, tenderID, qaID, answer string, now time.Time) (*models.QAEntry, error) {
	var q models.QAEntry
	err := r.DB.QueryRow(ctx, `
		UPDATE qa_entry SET answer = $1, answered_at = $2
		WHERE id = $3 AND tender_id = $4
		RETURNING id, tender_id, question, COALESCE(answer, ''), asked_by, asked_at, answered_at`,
		answer, now, qaID, tenderID).Scan(
		&q.ID, &q.TenderID, &q.Question, &q.Answer, &q.AskedBy, &q.AskedAt, &q.AnsweredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "spørsmål ikke funnet")
		}
		return nil, err
	}
	return &q, nil
}

// GetEvents returns the append-only history for a tender, oldest first.
func (r *PostgresTenderRepository) GetEvents(ctx context.Context, tenderID string) ([]models.TenderEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tender_id, action, actor_id, actor_name, COALESCE(note, ''), created_at
		FROM tender_event WHERE tender_id = $1 ORDER BY created_at`, tenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TenderEvent
	for rows.Next() {
		var e models.TenderEvent
		if err := rows.Scan(&e.ID, &e.TenderID, &e.Action, &e.ActorID, &e.ActorName, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, e models.TenderEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO tender_event (id, tender_id, action, actor_id, actor_name, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenderID, e.Action, e.ActorID, e.ActorName, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tender event: %w", err)
	}
	return nil
}
