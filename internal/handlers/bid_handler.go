package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/anbudportalen/tender-service/internal/models"
	"github.com/anbudportalen/tender-service/internal/services"
	"github.com/anbudportalen/tender-service/internal/utils"
)

// BidHandler serves the bid and award endpoints.
type BidHandler struct {
	Service *services.BidService
	Tenders *services.TenderService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(service *services.BidService, tenders *services.TenderService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Tenders: tenders,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *BidHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.Timeout)
}

// SubmitBid handles POST /api/tenders/{tenderId}/bids.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	bid, err := h.Service.SubmitBid(ctx, r.PathValue("tenderId"), req, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke registrere tilbudet")
		return
	}
	utils.SendJSON(w, http.StatusCreated, bid)
}

// GetTenderBids handles GET /api/tenders/{tenderId}/bids.
func (h *BidHandler) GetTenderBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bids, err := h.Service.GetTenderBids(ctx, r.PathValue("tenderId"), actor, limit, offset)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente tilbudene")
		return
	}
	utils.SendJSON(w, http.StatusOK, bids)
}

// AwardBid handles POST /api/tenders/{tenderId}/award/{bidId}.
func (h *BidHandler) AwardBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	tender, err := h.Service.AwardBid(ctx, r.PathValue("tenderId"), r.PathValue("bidId"), actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke tildele anbudet")
		return
	}
	utils.SendJSON(w, http.StatusOK, tender)
}

// ScoreBid handles PATCH /api/bids/{bidId}/score.
func (h *BidHandler) ScoreBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var upd models.BidScoreUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	bid, err := h.Service.ScoreBid(ctx, r.PathValue("bidId"), upd, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke oppdatere tilbudet")
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// GetStandstill handles GET /api/tenders/{tenderId}/standstill. Contract
// generation consults this before proceeding: no contract while the period
// runs.
func (h *BidHandler) GetStandstill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tender, err := h.Tenders.GetTender(ctx, r.PathValue("tenderId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente anbudet")
		return
	}

	utils.SendJSON(w, http.StatusOK, struct {
		Awarded       bool       `json:"awarded"`
		Ended         bool       `json:"ended"`
		RemainingDays int        `json:"remainingDays"`
		EndDate       *time.Time `json:"endDate,omitempty"`
	}{
		Awarded:       tender.Status == models.AwardedTender,
		Ended:         h.Service.IsStandstillPeriodEnded(tender),
		RemainingDays: h.Service.GetRemainingStandstillDays(tender),
		EndDate:       tender.StandstillEndDate,
	})
}
