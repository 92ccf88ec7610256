package services

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anbudportalen/tender-service/internal/blob"
	"github.com/anbudportalen/tender-service/internal/models"
	"github.com/anbudportalen/tender-service/internal/repository"
)

// allowedStatusTransition is the tender state machine. Awarded is reached
// only through the award operation, never through a direct status edit.
var allowedStatusTransition = map[models.TenderStatus][]models.TenderStatus{
	models.DraftTender:   {models.OpenTender},
	models.OpenTender:    {models.ClosedTender},
	models.ClosedTender:  {models.OpenTender},
	models.AwardedTender: {},
}

// transitionAction names the history entry for each target status.
var transitionAction = map[models.TenderStatus]string{
	models.OpenTender:   "published",
	models.ClosedTender: "closed",
}

type TenderService struct {
	Repo   repository.TenderRepository
	Blob   blob.Storage
	Logger *log.Logger
	now    func() time.Time
}

// NewTenderService creates a new TenderService.
func NewTenderService(repo repository.TenderRepository, blobStore blob.Storage, logger *log.Logger) *TenderService {
	return &TenderService{Repo: repo, Blob: blobStore, Logger: logger, now: time.Now}
}

// ValidateTender checks the creation payload field by field, so the caller
// can surface every problem at once. Returns nil when the payload is valid.
func ValidateTender(req models.TenderRequest, now time.Time) models.ValidationErrors {
	errs := models.ValidationErrors{}

	if req.ProjectID == "" {
		errs["projectId"] = "prosjekt er påkrevd"
	}
	if strings.TrimSpace(req.Title) == "" {
		errs["title"] = "tittel er påkrevd"
	}
	if req.ContractStandard == "" {
		errs["contractStandard"] = "kontraktstandard er påkrevd"
	} else if !models.ValidContractStandard(req.ContractStandard) {
		errs["contractStandard"] = "ugyldig kontraktstandard"
	}

	if req.Deadline.IsZero() {
		errs["deadline"] = "tilbudsfrist er påkrevd"
	} else if !req.Deadline.After(now) {
		errs["deadline"] = "tilbudsfrist må være frem i tid"
	}

	if req.PublishDate != nil {
		if req.PublishDate.Before(now.Truncate(24 * time.Hour)) {
			errs["publishDate"] = "publiseringsdato kan ikke være i fortiden"
		} else if !req.Deadline.IsZero() && !req.PublishDate.Before(req.Deadline) {
			errs["publishDate"] = "publiseringsdato må være før tilbudsfrist"
		}
	}

	if req.QuestionDeadline != nil {
		if !req.Deadline.IsZero() && !req.QuestionDeadline.Before(req.Deadline) {
			errs["questionDeadline"] = "spørsmålsfrist må være før tilbudsfrist"
		} else if req.PublishDate != nil && req.QuestionDeadline.Before(*req.PublishDate) {
			errs["questionDeadline"] = "spørsmålsfrist kan ikke være før publiseringsdato"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// CreateTender validates and persists a new tender in draft or open state.
func (s *TenderService) CreateTender(ctx context.Context, req models.TenderRequest, actor models.Actor) (*models.Tender, error) {
	if !actor.IsSender() {
		return nil, models.NewErrorResponse(http.StatusForbidden, "bare oppdragsgivere kan opprette anbud")
	}
	if req.Status != "" && req.Status != models.DraftTender && req.Status != models.OpenTender {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "et nytt anbud må være utkast eller åpent")
	}
	if errs := ValidateTender(req, s.now()); errs != nil {
		return nil, errs
	}
	return s.Repo.CreateTender(ctx, req, actor, s.now())
}

// GetTender loads the full aggregate.
func (s *TenderService) GetTender(ctx context.Context, tenderID string) (*models.Tender, error) {
	if tenderID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "anbuds-id er påkrevd")
	}
	return s.Repo.GetTender(ctx, tenderID)
}

// GetUserTenders lists the tenders owned by the actor. The expiry sweep runs
// first, so a dashboard never shows an expired tender as open.
func (s *TenderService) GetUserTenders(ctx context.Context, actor models.Actor, limit, offset int, statuses []string) ([]models.Tender, error) {
	for _, st := range statuses {
		if !models.ValidTenderStatus(models.TenderStatus(st)) {
			return nil, models.NewErrorResponse(http.StatusBadRequest, "ugyldig status: "+st)
		}
	}

	if _, err := s.CloseExpiredTenders(ctx, actor.ID); err != nil {
		s.Logger.Printf("expiry sweep failed for %s: %v", actor.ID, err)
	}

	return s.Repo.GetUserTenders(ctx, actor.ID, limit, offset, statuses)
}

// UpdateTender applies a typed patch after re-validating the merged dates.
func (s *TenderService) UpdateTender(ctx context.Context, tenderID string, upd models.TenderUpdate, actor models.Actor) (*models.Tender, error) {
	tender, err := s.ownedTender(ctx, tenderID, actor)
	if err != nil {
		return nil, err
	}
	if tender.Status == models.AwardedTender {
		return nil, models.NewErrorResponse(http.StatusConflict, "et tildelt anbud kan ikke endres")
	}

	merged := models.TenderRequest{
		Title:            tender.Title,
		Description:      tender.Description,
		ContractStandard: tender.ContractStandard,
		Price:            tender.Price,
		PublishDate:      tender.PublishDate,
		QuestionDeadline: tender.QuestionDeadline,
		Deadline:         tender.Deadline,
		ProjectID:        tender.ProjectID,
	}
	if upd.Title != nil {
		merged.Title = *upd.Title
	}
	if upd.ContractStandard != nil {
		merged.ContractStandard = *upd.ContractStandard
	}
	if upd.PublishDate != nil {
		merged.PublishDate = upd.PublishDate
	}
	if upd.QuestionDeadline != nil {
		merged.QuestionDeadline = upd.QuestionDeadline
	}
	if upd.Deadline != nil {
		merged.Deadline = *upd.Deadline
	}

	if errs := validateDates(merged, upd.Deadline != nil, s.now()); errs != nil {
		return nil, errs
	}

	return s.Repo.UpdateTender(ctx, tenderID, upd)
}

// validateDates checks only the date-ordering rules, used on edits where the
// existing deadline may legitimately be in the past (closed tenders).
func validateDates(req models.TenderRequest, deadlineChanged bool, now time.Time) models.ValidationErrors {
	errs := models.ValidationErrors{}

	if deadlineChanged && !req.Deadline.After(now) {
		errs["deadline"] = "tilbudsfrist må være frem i tid"
	}
	if req.PublishDate != nil && !req.PublishDate.Before(req.Deadline) {
		errs["publishDate"] = "publiseringsdato må være før tilbudsfrist"
	}
	if req.QuestionDeadline != nil {
		if !req.QuestionDeadline.Before(req.Deadline) {
			errs["questionDeadline"] = "spørsmålsfrist må være før tilbudsfrist"
		} else if req.PublishDate != nil && req.QuestionDeadline.Before(*req.PublishDate) {
			errs["questionDeadline"] = "spørsmålsfrist kan ikke være før publiseringsdato"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// UpdateStatus performs a sender-initiated transition: publish, close or
// reopen. Awarding is not reachable from here.
func (s *TenderService) UpdateStatus(ctx context.Context, tenderID string, newStatus models.TenderStatus, actor models.Actor, note string) (*models.Tender, error) {
	if !models.ValidTenderStatus(newStatus) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "ugyldig status")
	}

	tender, err := s.ownedTender(ctx, tenderID, actor)
	if err != nil {
		return nil, err
	}

	if !containsStatus(allowedStatusTransition[tender.Status], newStatus) {
		return nil, models.NewErrorResponse(http.StatusConflict,
			"ugyldig statusovergang fra "+string(tender.Status)+" til "+string(newStatus))
	}

	if tender.Status == models.DraftTender && newStatus == models.OpenTender && !s.now().Before(tender.Deadline) {
		return nil, models.NewErrorResponse(http.StatusConflict, "tilbudsfristen er utløpt")
	}

	action := transitionAction[newStatus]
	if tender.Status == models.ClosedTender && newStatus == models.OpenTender {
		action = "reopened"
	}

	return s.Repo.UpdateStatus(ctx, tenderID, newStatus, models.TenderEvent{
		Action:    action,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      note,
		CreatedAt: s.now(),
	})
}

// CloseExpiredTenders closes every open tender owned by ownerID whose
// deadline has passed. Idempotent; the second run reports zero.
func (s *TenderService) CloseExpiredTenders(ctx context.Context, ownerID string) (int, error) {
	return s.Repo.CloseExpired(ctx, ownerID, s.now())
}

// DeleteTender removes the aggregate. Tenders with received bids are kept
// unless the owning sender forces the deletion. Blob deletes that fail are
// logged and never block the metadata removal.
func (s *TenderService) DeleteTender(ctx context.Context, tenderID string, actor models.Actor, force bool) error {
	tender, err := s.ownedTender(ctx, tenderID, actor)
	if err != nil {
		return err
	}
	if len(tender.Bids) > 0 && !force {
		return models.NewErrorResponse(http.StatusConflict, "anbudet har mottatte tilbud og kan ikke slettes")
	}

	paths, err := s.Repo.DeleteTender(ctx, tenderID)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := s.Blob.Delete(ctx, path); err != nil {
			s.Logger.Printf("orphaned blob %s after deleting tender %s: %v", path, tenderID, err)
		}
	}
	return nil
}

// InviteSupplier appends a supplier to the invitation list. Emails are
// normalized so later eligibility matching is exact.
func (s *TenderService) InviteSupplier(ctx context.Context, tenderID string, inv models.InvitedSupplier, actor models.Actor) (*models.InvitedSupplier, error) {
	if _, err := s.ownedTender(ctx, tenderID, actor); err != nil {
		return nil, err
	}
	if inv.Email == "" && inv.SupplierID == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "e-post eller leverandør-id er påkrevd")
	}

	inv.TenderID = tenderID
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	inv.InvitedAt = s.now()
	return s.Repo.AddInvitedSupplier(ctx, inv)
}

// AddQuestion records a supplier question, refused after the question
// deadline.
func (s *TenderService) AddQuestion(ctx context.Context, tenderID, question string, actor models.Actor) (*models.QAEntry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "spørsmål kan ikke være tomt")
	}

	tender, err := s.Repo.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender.QuestionDeadline != nil && !s.now().Before(*tender.QuestionDeadline) {
		return nil, models.NewErrorResponse(http.StatusConflict, "spørsmålsfristen er utløpt")
	}

	return s.Repo.AddQuestion(ctx, models.QAEntry{
		TenderID: tenderID,
		Question: question,
		AskedBy:  actor.ID,
		AskedAt:  s.now(),
	})
}

// AnswerQuestion records the sender's answer.
func (s *TenderService) AnswerQuestion(ctx context.Context, tenderID, qaID, answer string, actor models.Actor) (*models.QAEntry, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "svar kan ikke være tomt")
	}
	if _, err := s.ownedTender(ctx, tenderID, actor); err != nil {
		return nil, err
	}
	return s.Repo.AnswerQuestion(ctx, tenderID, qaID, answer, s.now())
}

// GetHistory returns the append-only event log for a tender.
func (s *TenderService) GetHistory(ctx context.Context, tenderID string) ([]models.TenderEvent, error) {
	return s.Repo.GetEvents(ctx, tenderID)
}

// ownedTender loads the tender and verifies the actor is its owning sender.
func (s *TenderService) ownedTender(ctx context.Context, tenderID string, actor models.Actor) (*models.Tender, error) {
	tender, err := s.Repo.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSender() || tender.CreatedBy != actor.ID {
		return nil, models.NewErrorResponse(http.StatusForbidden, "du har ikke tilgang til dette anbudet")
	}
	return tender, nil
}

func containsStatus(valid []models.TenderStatus, status models.TenderStatus) bool {
	for _, v := range valid {
		if v == status {
			return true
		}
	}
	return false
}
