package services

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/anbudportalen/tender-service/internal/blob"
	"github.com/anbudportalen/tender-service/internal/models"

	"github.com/google/uuid"
)

// In-memory fakes mirroring the behavior of the Postgres repositories, so
// the services can be exercised without a database.

var (
	sender        = models.Actor{ID: "sender-1", Name: "Byggherre AS", Role: models.SenderRole}
	otherSender   = models.Actor{ID: "sender-2", Name: "Annen Byggherre AS", Role: models.SenderRole}
	supplierActor = models.Actor{ID: "supplier-1", Name: "Rørlegger AS", Role: models.SupplierRole}
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeTenderRepo struct {
	tenders map[string]*models.Tender
	events  map[string][]models.TenderEvent
	paths   map[string][]string // blob paths returned on delete
}

func newFakeTenderRepo() *fakeTenderRepo {
	return &fakeTenderRepo{
		tenders: make(map[string]*models.Tender),
		events:  make(map[string][]models.TenderEvent),
		paths:   make(map[string][]string),
	}
}

func (f *fakeTenderRepo) seed(t models.Tender) *models.Tender {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	f.tenders[t.ID] = &t
	return &t
}

func (f *fakeTenderRepo) CreateTender(_ context.Context, req models.TenderRequest, actor models.Actor, now time.Time) (*models.Tender, error) {
	status := req.Status
	if status == "" {
		status = models.DraftTender
	}
	t := models.Tender{
		ID:               uuid.New().String(),
		Title:            req.Title,
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
	f.tenders[t.ID] = &t
	f.appendEvent(models.TenderEvent{TenderID: t.ID, Action: "created", ActorID: actor.ID, ActorName: actor.Name, CreatedAt: now})
	return &t, nil
}

func (f *fakeTenderRepo) GetTender(_ context.Context, tenderID string) (*models.Tender, error) {
	t, ok := f.tenders[tenderID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenderRepo) GetUserTenders(_ context.Context, ownerID string, _, _ int, statuses []string) ([]models.Tender, error) {
	var out []models.Tender
	for _, t := range f.tenders {
		if t.CreatedBy != ownerID {
			continue
		}
		if len(statuses) > 0 && !containsString(statuses, string(t.Status)) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTenderRepo) UpdateTender(_ context.Context, tenderID string, upd models.TenderUpdate) (*models.Tender, error) {
	t, ok := f.tenders[tenderID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.ContractStandard != nil {
		t.ContractStandard = *upd.ContractStandard
	}
	if upd.Price != nil {
		t.Price = *upd.Price
	}
	if upd.PublishDate != nil {
		t.PublishDate = upd.PublishDate
	}
	if upd.QuestionDeadline != nil {
		t.QuestionDeadline = upd.QuestionDeadline
	}
	if upd.Deadline != nil {
		t.Deadline = *upd.Deadline
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenderRepo) UpdateStatus(_ context.Context, tenderID string, status models.TenderStatus, event models.TenderEvent) (*models.Tender, error) {
	t, ok := f.tenders[tenderID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	t.Status = status
	event.TenderID = tenderID
	f.appendEvent(event)
	cp := *t
	return &cp, nil
}

func (f *fakeTenderRepo) CloseExpired(_ context.Context, ownerID string, now time.Time) (int, error) {
	closed := 0
	for _, t := range f.tenders {
		if t.CreatedBy == ownerID && t.Status == models.OpenTender && t.Deadline.Before(now) {
			t.Status = models.ClosedTender
			f.appendEvent(models.TenderEvent{
				TenderID:  t.ID,
				Action:    "closed",
				ActorID:   "system",
				ActorName: "system",
				Note:      "tilbudsfrist utløpt",
				CreatedAt: now,
			})
			closed++
		}
	}
	return closed, nil
}

func (f *fakeTenderRepo) DeleteTender(_ context.Context, tenderID string) ([]string, error) {
	if _, ok := f.tenders[tenderID]; !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	delete(f.tenders, tenderID)
	return f.paths[tenderID], nil
}

func (f *fakeTenderRepo) AddInvitedSupplier(_ context.Context, inv models.InvitedSupplier) (*models.InvitedSupplier, error) {
	inv.ID = uuid.New().String()
	t := f.tenders[inv.TenderID]
	t.InvitedSuppliers = append(t.InvitedSuppliers, inv)
	return &inv, nil
}

func (f *fakeTenderRepo) AddQuestion(_ context.Context, q models.QAEntry) (*models.QAEntry, error) {
	q.ID = uuid.New().String()
	t := f.tenders[q.TenderID]
	t.QA = append(t.QA, q)
	return &q, nil
}

func (f *fakeTenderRepo) AnswerQuestion(_ context.Context, tenderID, qaID, answer string, now time.Time) (*models.QAEntry, error) {
	t, ok := f.tenders[tenderID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	for i := range t.QA {
		if t.QA[i].ID == qaID {
			t.QA[i].Answer = answer
			t.QA[i].AnsweredAt = &now
			q := t.QA[i]
			return &q, nil
		}
	}
	return nil, models.NewErrorResponse(http.StatusNotFound, "spørsmål ikke funnet")
}

func (f *fakeTenderRepo) GetEvents(_ context.Context, tenderID string) ([]models.TenderEvent, error) {
	return f.events[tenderID], nil
}

func (f *fakeTenderRepo) appendEvent(e models.TenderEvent) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	f.events[e.TenderID] = append(f.events[e.TenderID], e)
}

// fakeBidRepo shares the tender map so the award mutates the aggregate the
// way the Postgres award transaction does.
type fakeBidRepo struct {
	tenders *fakeTenderRepo
	bids    map[string]*models.Bid
}

func newFakeBidRepo(tenders *fakeTenderRepo) *fakeBidRepo {
	return &fakeBidRepo{tenders: tenders, bids: make(map[string]*models.Bid)}
}

func (f *fakeBidRepo) CreateBid(_ context.Context, tenderID string, req models.BidRequest, now time.Time) (*models.Bid, error) {
	b := models.Bid{
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
	f.bids[b.ID] = &b
	if t, ok := f.tenders.tenders[tenderID]; ok {
		t.Bids = append(t.Bids, b)
	}
	return &b, nil
}

func (f *fakeBidRepo) GetBid(_ context.Context, bidID string) (*models.Bid, error) {
	b, ok := f.bids[bidID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBidRepo) GetTenderBids(_ context.Context, tenderID string, _, _ int) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range f.bids {
		if b.TenderID == tenderID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBidRepo) UpdateScore(_ context.Context, bidID string, upd models.BidScoreUpdate) (*models.Bid, error) {
	b, ok := f.bids[bidID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
	}
	if upd.Score != nil {
		b.Score = *upd.Score
	}
	if upd.Notes != nil {
		b.Notes = *upd.Notes
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBidRepo) AwardBid(_ context.Context, tenderID, bidID string, actor models.Actor, awardedAt, standstillEnd time.Time) (*models.Tender, error) {
	t, ok := f.tenders.tenders[tenderID]
	if !ok {
		return nil, models.NewErrorResponse(http.StatusNotFound, "anbud ikke funnet")
	}
	if t.AwardedBidID != "" {
		if t.AwardedBidID == bidID {
			cp := *t
			return &cp, nil
		}
		return nil, models.NewErrorResponse(http.StatusConflict, "anbudet er allerede tildelt et annet tilbud")
	}
	b, ok := f.bids[bidID]
	if !ok || b.TenderID != tenderID {
		return nil, models.NewErrorResponse(http.StatusNotFound, "tilbud ikke funnet")
	}

	t.Status = models.AwardedTender
	t.AwardedBidID = bidID
	t.AwardedAt = &awardedAt
	t.StandstillStartDate = &awardedAt
	t.StandstillEndDate = &standstillEnd
	b.Status = models.AwardedBid
	f.tenders.appendEvent(models.TenderEvent{
		TenderID:  tenderID,
		Action:    "awarded",
		ActorID:   actor.ID,
		ActorName: actor.Name,
		CreatedAt: awardedAt,
	})
	cp := *t
	return &cp, nil
}

type fakeNotifier struct {
	awards []string // bid IDs notified about
}

func (f *fakeNotifier) NotifyAward(_ context.Context, _ *models.Tender, bid *models.Bid) error {
	f.awards = append(f.awards, bid.ID)
	return nil
}

type fakeBlob struct {
	deleted []string
}

func (f *fakeBlob) Upload(_ context.Context, key string, _ io.Reader, size int64, contentType string) (*blob.UploadResult, error) {
	return &blob.UploadResult{URL: "https://blob/" + key, Path: key, Size: size, ContentType: contentType}, nil
}

func (f *fakeBlob) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlob) PresignGet(_ context.Context, key string) (string, error) {
	return "https://blob/" + key, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
