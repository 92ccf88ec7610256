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
)

// BidRepository is the persistence port for bids, including the award
// operation, which mutates both the bid and its tender.
type BidRepository interface {
	CreateBid(ctx context.Context, tenderID string, req models.BidRequest, now time.Time) (*models.Bid, error)
	GetBid(ctx context.Context, bidID string) (*models.Bid, error)
	GetTenderBids(ctx context.Context, tenderID string, limit, offset int) ([]models.Bid, error)
	UpdateScore(ctx context.Context, bidID string, upd models.BidScoreUpdate) (*models.Bid, error)
	AwardBid(ctx context.Context, tenderID, bidID string, actor models.Actor, awardedAt, standstillEnd time.Time) (*models.Tender, error)
}

// PostgresBidRepository implements BidRepository over pgx.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository creates a new PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, tender_id, supplier_id, company_name, price, price_structure,
	hourly_rate, estimated_hours, submitted_at, score, COALESCE(notes, ''), status`

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(
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
		&b.Status,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBid inserts a submitted bid.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, tenderID string, req models.BidRequest, now time.Time) (*models.Bid, error) {
	newBid := models.Bid{
		ID:             uuid.New().String(),
		TenderID:       tenderID,
		SupplierID:     req.SupplierID,
		CompanyName:    req.CompanyName,
		Price:          req.Price,
		PriceStructure: req.PriceStructure,
		HourlyRate:     req.HourlyRate,
		EstimatedHours: req.EstimatedHours,
		SubmittedAt:    now,
		Status:         models.SubmittedBid,
	}

	_, err := r.DB.Exec(ctx, `
		INSERT INTO bid (id, tender_id, supplier_id, company_name, price, price_structure,
			hourly_rate, estimated_hours, submitted_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		newBid.ID,
		newBid.TenderID,
		newBid.SupplierID,
		newBid.CompanyName,
		newBid.Price,
		newBid.PriceStructure,
		newBid.HourlyRate,
		newBid.EstimatedHours,
		newBid.SubmittedAt,
		newBid.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bid: %w", err)
	}
	return &newBid, nil
}

// GetBid loads a single bid.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE id = $1`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
		}
		return nil, err
	}
	return bid, nil
}

// GetTenderBids lists the bids on a tender, oldest first.
func (r *PostgresBidRepository) GetTenderBids(ctx context.Context, tenderID string, limit, offset int) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE tender_id = $1 ORDER BY submitted_at LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, tenderID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

// UpdateScore applies the sender-side score/notes patch. Price and the
// supplier-entered fields are never touched here.
func (r *PostgresBidRepository) UpdateScore(ctx context.Context, bidID string, upd models.BidScoreUpdate) (*models.Bid, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	if upd.Score != nil {
		updates = append(updates, fmt.Sprintf("score = $%d", argIndex))
		args = append(args, *upd.Score)
		argIndex++
	}
	if upd.Notes != nil {
		updates = append(updates, fmt.Sprintf("notes = $%d", argIndex))
		args = append(args, *upd.Notes)
		argIndex++
	}
	if len(updates) == 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "ingen felter å oppdatere")
	}

	query := "UPDATE bid SET " + strings.Join(updates, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", argIndex) + bidColumns
	args = append(args, bidID)

	bid, err := scanBid(r.DB.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
		}
		return nil, err
	}
	return bid, nil
}

// AwardBid selects the winning bid. The tender row is locked for the
// duration of the transaction, so of two concurrent award attempts exactly
// one wins and the other observes the conflict. Re-awarding the same bid is
// an idempotent no-op.
func (r *PostgresBidRepository) AwardBid(ctx context.Context, tenderID, bidID string, actor models.Actor, awardedAt, standstillEnd time.Time) (*models.Tender, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status models.TenderStatus
	var awardedBidID string
	err = tx.QueryRow(ctx,
		`SELECT status, COALESCE(awarded_bid_id, '') FROM tender WHERE id = $1 FOR UPDATE`,
		tenderID).Scan(&status, &awardedBidID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
		}
		return nil, err
	}

	if awardedBidID != "" {
		if awardedBidID == bidID {
			tender, err := scanTender(tx.QueryRow(ctx, `SELECT `+tenderColumns+` FROM tender WHERE id = $1`, tenderID))
			if err != nil {
				return nil, err
			}
			return tender, tx.Commit(ctx)
		}
		return nil, models.NewErrorResponse(http.StatusConflict, "anbudet er allerede tildelt et annet tilbud")
	}

	var bidExists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bid WHERE id = $1 AND tender_id = $2)`,
		bidID, tenderID).Scan(&bidExists)
	if err != nil {
		return nil, err
	}
	if !bidExists {
		return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
	}

	query := `UPDATE tender
		SET status = $1, awarded_bid_id = $2, awarded_at = $3,
			standstill_start_date = $3, standstill_end_date = $4
		WHERE id = $5 RETURNING ` + tenderColumns
	tender, err := scanTender(tx.QueryRow(ctx, query, models.AwardedTender, bidID, awardedAt, standstillEnd, tenderID))
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE bid SET status = $1 WHERE id = $2`, models.AwardedBid, bidID)
	if err != nil {
		return nil, err
	}

	if err := insertEvent(ctx, tx, models.TenderEvent{
		TenderID:  tenderID,
		Action:    "awarded",
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      fmt.Sprintf("tilbud %s tildelt", bidID),
		CreatedAt: awardedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return tender, nil
}
