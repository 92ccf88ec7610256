package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/anbudportalen/tender-service/internal/services"
	"github.com/anbudportalen/tender-service/internal/utils"
)

const maxUploadSize = 32 << 20 // 32 MB

// DocumentHandler serves the document version chain endpoints.
type DocumentHandler struct {
	Service *services.DocumentService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(service *services.DocumentService, logger *log.Logger, timeout time.Duration) *DocumentHandler {
	return &DocumentHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *DocumentHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.Timeout)
}

// UploadVersion handles POST /api/documents/versions. Multipart form with a
// "file" part plus context, contextId, an optional documentId (omitted for
// a brand new document) and an optional changeReason.
func (h *DocumentHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig filopplasting")
		return
	}

	docContext := r.FormValue("context")
	contextID := r.FormValue("contextId")
	if docContext == "" || contextID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "context og contextId er påkrevd")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "fil mangler")
		return
	}
	defer file.Close()

	version, err := h.Service.UploadVersion(ctx,
		r.FormValue("documentId"),
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
		actor,
		docContext,
		contextID,
		r.FormValue("changeReason"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke laste opp dokumentet")
		return
	}
	utils.SendJSON(w, http.StatusCreated, version)
}

// GetVersions handles GET /api/documents/{documentId}/versions.
func (h *DocumentHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	versions, err := h.Service.GetVersions(ctx, r.PathValue("documentId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente versjonene")
		return
	}
	utils.SendJSON(w, http.StatusOK, versions)
}

// GetCurrentVersion handles GET /api/documents/{documentId}/current.
func (h *DocumentHandler) GetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	version, err := h.Service.GetCurrentVersion(ctx, r.PathValue("documentId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente versjonen")
		return
	}
	if version == nil {
		utils.SendErrorResponse(w, http.StatusNotFound, "dokument ikke funnet")
		return
	}
	utils.SendJSON(w, http.StatusOK, version)
}

// CompareVersions handles GET /api/documents/{documentId}/compare?from=N&to=M.
func (h *DocumentHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "from og to må være versjonsnumre")
		return
	}

	documentID := r.PathValue("documentId")
	v1, err := h.Service.GetVersionByNumber(ctx, documentID, from)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente versjonene")
		return
	}
	v2, err := h.Service.GetVersionByNumber(ctx, documentID, to)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente versjonene")
		return
	}
	if v1 == nil || v2 == nil {
		utils.SendErrorResponse(w, http.StatusNotFound, "versjon ikke funnet")
		return
	}

	utils.SendJSON(w, http.StatusOK, h.Service.CompareVersions(v1, v2))
}

// GetChangeHistory handles GET /api/documents/{documentId}/history.
func (h *DocumentHandler) GetChangeHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	history, err := h.Service.GetChangeHistory(ctx, r.PathValue("documentId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente endringshistorikken")
		return
	}
	utils.SendJSON(w, http.StatusOK, history)
}

// RestoreVersion handles POST /api/documents/{documentId}/restore/{version}.
func (h *DocumentHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	actor, ok := utils.RequireActor(w, r)
	if !ok {
		return
	}

	versionNumber, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "ugyldig versjonsnummer")
		return
	}

	docContext := r.URL.Query().Get("context")
	contextID := r.URL.Query().Get("contextId")

	version, restoreErr := h.Service.RestoreVersion(ctx, r.PathValue("documentId"), versionNumber, actor, docContext, contextID)
	if restoreErr != nil {
		utils.SendError(w, h.Logger, restoreErr, "kunne ikke gjenopprette versjonen")
		return
	}
	utils.SendJSON(w, http.StatusCreated, version)
}

// ListDocuments handles GET /api/documents?context=tender&contextId=...
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	docContext := r.URL.Query().Get("context")
	contextID := r.URL.Query().Get("contextId")
	if docContext == "" || contextID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "context og contextId er påkrevd")
		return
	}

	docs, err := h.Service.ListDocuments(ctx, docContext, contextID)
	if err != nil {
		utils.SendError(w, h.Logger, err, "kunne ikke hente dokumentene")
		return
	}
	utils.SendJSON(w, http.StatusOK, docs)
}
