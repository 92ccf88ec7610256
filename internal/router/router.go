package router

import (
	"net/http"

	"github.com/anbudportalen/tender-service/internal/handlers"
)

// InitRoutes wires the HTTP surface.
func InitRoutes(tenderHandler *handlers.TenderHandler, bidHandler *handlers.BidHandler, documentHandler *handlers.DocumentHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/tenders/new", tenderHandler.CreateTender)
	mux.HandleFunc("GET /api/tenders/my", tenderHandler.GetUserTenders)
	mux.HandleFunc("POST /api/tenders/expired/close", tenderHandler.CloseExpired)
	mux.HandleFunc("GET /api/tenders/{tenderId}", tenderHandler.GetTender)
	mux.HandleFunc("PUT /api/tenders/{tenderId}/status", tenderHandler.UpdateStatus)
	mux.HandleFunc("PATCH /api/tenders/{tenderId}/edit", tenderHandler.EditTender)
	mux.HandleFunc("DELETE /api/tenders/{tenderId}", tenderHandler.DeleteTender)
	mux.HandleFunc("POST /api/tenders/{tenderId}/invite", tenderHandler.InviteSupplier)
	mux.HandleFunc("POST /api/tenders/{tenderId}/questions", tenderHandler.AddQuestion)
	mux.HandleFunc("PUT /api/tenders/{tenderId}/questions/{questionId}", tenderHandler.AnswerQuestion)
	mux.HandleFunc("GET /api/tenders/{tenderId}/history", tenderHandler.GetHistory)

	mux.HandleFunc("POST /api/tenders/{tenderId}/bids", bidHandler.SubmitBid)
	mux.HandleFunc("GET /api/tenders/{tenderId}/bids", bidHandler.GetTenderBids)
	mux.HandleFunc("POST /api/tenders/{tenderId}/award/{bidId}", bidHandler.AwardBid)
	mux.HandleFunc("GET /api/tenders/{tenderId}/standstill", bidHandler.GetStandstill)
	mux.HandleFunc("PATCH /api/bids/{bidId}/score", bidHandler.ScoreBid)

	mux.HandleFunc("POST /api/documents/versions", documentHandler.UploadVersion)
	mux.HandleFunc("GET /api/documents", documentHandler.ListDocuments)
	mux.HandleFunc("GET /api/documents/{documentId}/versions", documentHandler.GetVersions)
	mux.HandleFunc("GET /api/documents/{documentId}/current", documentHandler.GetCurrentVersion)
	mux.HandleFunc("GET /api/documents/{documentId}/compare", documentHandler.CompareVersions)
	mux.HandleFunc("GET /api/documents/{documentId}/history", documentHandler.GetChangeHistory)
	mux.HandleFunc("POST /api/documents/{documentId}/restore/{version}", documentHandler.RestoreVersion)

	return mux
}
