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

// TenderHandler serves the tender endpoints.
type TenderHandler struct {
	Service *services.TenderService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewTenderHandler creates a new TenderHandler.
func NewTenderHandler(service *services.TenderService, logger *log.Logger, timeout time.Duration) *TenderHandler {
	return &TenderHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *TenderHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.Timeout)
}

// CreateTender handles POST /api/tenders/new.
func (h *TenderHandler) CreateTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var req models.TenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	tender, err := h.Service.CreateTender(ctx, req, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke opprette anbudet")
		return
	}
	utils.SendJSON(w, http.StatusCreated, tender)
}

// GetUserTenders handles GET /api/tenders/my. Loading the dashboard list
// also runs the expiry sweep.
func (h *TenderHandler) GetUserTenders(w http.ResponseWriter, r *http.Request) {
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

	tenders, err := h.Service.GetUserTenders(ctx, actor, limit, offset, r.URL.Query()["status"])
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente anbudene")
		return
	}
	utils.SendJSON(w, http.StatusOK, tenders)
}

// GetTender handles GET /api/tenders/{tenderId}.
func (h *TenderHandler) GetTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tender, err := h.Service.GetTender(ctx, r.PathValue("tenderId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente anbudet")
		return
	}
	utils.SendJSON(w, http.StatusOK, tender)
}

// UpdateStatus handles PUT /api/tenders/{tenderId}/status. Status and an
// optional note come as query parameters.
func (h *TenderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "status er påkrevd")
		return
	}

	tender, err := h.Service.UpdateStatus(ctx, r.PathValue("tenderId"), models.TenderStatus(status), actor, r.URL.Query().Get("note"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke endre status")
		return
	}
	utils.SendJSON(w, http.StatusOK, tender)
}

// EditTender handles PATCH /api/tenders/{tenderId}/edit.
func (h *TenderHandler) EditTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var upd models.TenderUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	tender, err := h.Service.UpdateTender(ctx, r.PathValue("tenderId"), upd, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke oppdatere anbudet")
		return
	}
	utils.SendJSON(w, http.StatusOK, tender)
}

// DeleteTender handles DELETE /api/tenders/{tenderId}.
func (h *TenderHandler) DeleteTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := h.Service.DeleteTender(ctx, r.PathValue("tenderId"), actor, force); err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke slette anbudet")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InviteSupplier handles POST /api/tenders/{tenderId}/invite.
func (h *TenderHandler) InviteSupplier(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var inv models.InvitedSupplier
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	invited, err := h.Service.InviteSupplier(ctx, r.PathValue("tenderId"), inv, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke invitere leverandøren")
		return
	}
	utils.SendJSON(w, http.StatusCreated, invited)
}

// AddQuestion handles POST /api/tenders/{tenderId}/questions.
func (h *TenderHandler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	q, err := h.Service.AddQuestion(ctx, r.PathValue("tenderId"), body.Question, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke registrere spørsmålet")
		return
	}
	utils.SendJSON(w, http.StatusCreated, q)
}

// AnswerQuestion handles PUT /api/tenders/{tenderId}/questions/{questionId}.
func (h *TenderHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig forespørsel")
		return
	}

	q, err := h.Service.AnswerQuestion(ctx, r.PathValue("tenderId"), r.PathValue("questionId"), body.Answer, actor)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke besvare spørsmålet")
		return
	}
	utils.SendJSON(w, http.StatusOK, q)
}

// GetHistory handles GET /api/tenders/{tenderId}/history.
func (h *TenderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	events, err := h.Service.GetHistory(ctx, r.PathValue("tenderId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente historikken")
		return
	}
	utils.SendJSON(w, http.StatusOK, events)
}

// CloseExpired handles POST /api/tenders/expired/close and reports how many
// tenders the sweep closed.
func (h *TenderHandler) CloseExpired(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	closed, err := h.Service.CloseExpiredTenders(ctx, actor.ID)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke lukke utløpte anbud")
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]int{"closed": closed})
}
