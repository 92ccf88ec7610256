package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/anbudportalen/tender-service/internal/models"
)

// SendJSON writes v as a JSON response.
func SendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

// SendErrorResponse writes an error as JSON.
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	SendJSON(w, statusCode, models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	})
}

// SendError maps a service error onto the HTTP response. Validation errors
// keep their per-field breakdown; unknown errors are logged and hidden
// behind a generic message.
func SendError(w http.ResponseWriter, logger *log.Logger, err error, fallback string) {
	switch e := err.(type) {
	case models.ValidationErrors:
		SendJSON(w, http.StatusBadRequest, struct {
			Message string                  `json:"reason"`
			Fields  models.ValidationErrors `json:"fields"`
		}{e.Error(), e})
	case *models.ErrorResponse:
		logger.Println(err)
		SendErrorResponse(w, e.StatusCode, e.Message)
	default:
		logger.Println(err)
		SendErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// ParseLimitOffset parses the limit and offset query parameters.
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("ugyldig limit, må være et heltall mellom 1 og 50")
		}
	} else {
		limit = 20
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("ugyldig offset, må være et ikke-negativt heltall")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// ActorFromRequest reads the acting principal from the request headers.
// Authentication itself is handled upstream; the core only ever sees an
// explicit actor.
func ActorFromRequest(r *http.Request) models.Actor {
	return models.Actor{
		ID:   r.Header.Get("X-User-Id"),
		Name: r.Header.Get("X-User-Name"),
		Role: models.Role(r.Header.Get("X-User-Role")),
	}
}

// RequireActor rejects requests without an identified principal.
func RequireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor := ActorFromRequest(r)
	if actor.ID == "" {
		SendErrorResponse(w, http.StatusUnauthorized, "ukjent bruker")
		return actor, false
	}
	return actor, true
}
