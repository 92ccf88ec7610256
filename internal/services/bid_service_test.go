package services

import (
	"context"
	"testing"
	"time"

	"github.com/anbudportalen/tender-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBidService(bids *fakeBidRepo, tenders *fakeTenderRepo, notifier *fakeNotifier) *BidService {
	svc := NewBidService(bids, tenders, notifier, testLogger(), 0)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func openTender(repo *fakeTenderRepo) *models.Tender {
	return repo.seed(models.Tender{
		Status:    models.OpenTender,
		Deadline:  fixedNow.AddDate(0, 0, 10),
		CreatedBy: sender.ID,
		InvitedSuppliers: []models.InvitedSupplier{
			{SupplierID: supplierActor.ID, CompanyName: "Rørlegger AS", Email: "post@rorlegger.no"},
		},
	})
}

func validBidRequest() models.BidRequest {
	return models.BidRequest{
		SupplierID:     supplierActor.ID,
		CompanyName:    "Rørlegger AS",
		Email:          "post@rorlegger.no",
		Price:          100000,
		PriceStructure: models.FastPris,
	}
}

func TestValidateBid_Timepris(t *testing.T) {
	req := validBidRequest()
	req.PriceStructure = models.TimePris

	errs := ValidateBid(req)

	require.NotNil(t, errs)
	assert.Contains(t, errs, "hourlyRate")
	assert.Contains(t, errs, "estimatedHours")

	req.HourlyRate = 950
	req.EstimatedHours = 120
	assert.Nil(t, ValidateBid(req))
}

func TestValidateBid_Price(t *testing.T) {
	req := validBidRequest()
	req.Price = 0

	errs := ValidateBid(req)

	require.NotNil(t, errs)
	assert.Equal(t, "pris må være større enn 0", errs["price"])
}

func TestSubmitBid_InvitedSupplier(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	bid, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), supplierActor)

	require.NoError(t, err)
	assert.Equal(t, models.SubmittedBid, bid.Status)
	assert.Equal(t, fixedNow, bid.SubmittedAt)
}

func TestSubmitBid_EmailMatchIsCaseInsensitive(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	req := validBidRequest()
	req.SupplierID = ""
	req.Email = "  POST@Rorlegger.NO "
	_, err := svc.SubmitBid(context.Background(), tender.ID, req, supplierActor)

	require.NoError(t, err)
}

func TestSubmitBid_NotInvited(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	req := validBidRequest()
	req.SupplierID = "someone-else"
	req.Email = "annen@leverandor.no"
	_, err := svc.SubmitBid(context.Background(), tender.ID, req, supplierActor)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Empty(t, bids.bids, "a refused bid is never stored")
}

func TestSubmitBid_SenderRegistersAdministratively(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	req := validBidRequest()
	req.SupplierID = "postal-bidder"
	req.Email = ""
	_, err := svc.SubmitBid(context.Background(), tender.ID, req, sender)

	require.NoError(t, err, "the sender may register a bid received outside the portal")
}

func TestSubmitBid_AfterDeadlineCreatesNoRecord(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := tenders.seed(models.Tender{
		Status:    models.OpenTender,
		Deadline:  fixedNow.Add(-time.Minute),
		CreatedBy: sender.ID,
	})

	_, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), supplierActor)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "tilbudsfristen er utløpt", resp.Message)
	assert.Empty(t, bids.bids)
}

func TestSubmitBid_TenderNotOpen(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := tenders.seed(models.Tender{
		Status:    models.DraftTender,
		Deadline:  fixedNow.AddDate(0, 0, 10),
		CreatedBy: sender.ID,
	})

	_, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), supplierActor)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestAwardBid_StartsStandstill(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	notifier := &fakeNotifier{}
	svc := newBidService(bids, tenders, notifier)
	tender := openTender(tenders)

	high, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)
	lowReq := validBidRequest()
	lowReq.Price = 90000
	low, err := svc.SubmitBid(context.Background(), tender.ID, lowReq, sender)
	require.NoError(t, err)

	awarded, err := svc.AwardBid(context.Background(), tender.ID, low.ID, sender)
	require.NoError(t, err)

	assert.Equal(t, models.AwardedTender, awarded.Status)
	assert.Equal(t, low.ID, awarded.AwardedBidID)
	require.NotNil(t, awarded.AwardedAt)
	assert.Equal(t, fixedNow, *awarded.AwardedAt)
	require.NotNil(t, awarded.StandstillEndDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, models.StandstillPeriodDays), *awarded.StandstillEndDate)

	winner, err := svc.GetBid(context.Background(), low.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AwardedBid, winner.Status)

	loser, err := svc.GetBid(context.Background(), high.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedBid, loser.Status)

	assert.Equal(t, []string{low.ID}, notifier.awards, "only the winner is notified")
}

func TestAwardBid_SecondAwardConflicts(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	first, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)
	second, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)

	_, err = svc.AwardBid(context.Background(), tender.ID, first.ID, sender)
	require.NoError(t, err)

	_, err = svc.AwardBid(context.Background(), tender.ID, second.ID, sender)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "anbudet er allerede tildelt et annet tilbud", resp.Message)
}

func TestAwardBid_SameBidIsIdempotent(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	bid, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)

	awarded, err := svc.AwardBid(context.Background(), tender.ID, bid.ID, sender)
	require.NoError(t, err)
	firstEnd := *awarded.StandstillEndDate

	again, err := svc.AwardBid(context.Background(), tender.ID, bid.ID, sender)
	require.NoError(t, err)
	assert.Equal(t, bid.ID, again.AwardedBidID)
	assert.Equal(t, firstEnd, *again.StandstillEndDate, "the standstill is set exactly once")
}

func TestAwardBid_DraftTender(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := tenders.seed(models.Tender{
		Status:    models.DraftTender,
		Deadline:  fixedNow.AddDate(0, 0, 10),
		CreatedBy: sender.ID,
	})

	_, err := svc.AwardBid(context.Background(), tender.ID, "b1", sender)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "anbudet er ikke publisert", resp.Message)
}

func TestAwardBid_OwnerOnly(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	bid, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)

	_, err = svc.AwardBid(context.Background(), tender.ID, bid.ID, otherSender)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestAwardBid_UnknownBid(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	_, err := svc.AwardBid(context.Background(), tender.ID, "missing", sender)

	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestScoreBid(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})
	tender := openTender(tenders)

	bid, err := svc.SubmitBid(context.Background(), tender.ID, validBidRequest(), sender)
	require.NoError(t, err)

	score := 85
	notes := "god pris, kort leveringstid"
	scored, err := svc.ScoreBid(context.Background(), bid.ID, models.BidScoreUpdate{Score: &score, Notes: &notes}, sender)
	require.NoError(t, err)
	assert.Equal(t, 85, scored.Score)
	assert.Equal(t, notes, scored.Notes)

	outOfRange := 150
	_, err = svc.ScoreBid(context.Background(), bid.ID, models.BidScoreUpdate{Score: &outOfRange}, sender)
	var resp *models.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestStandstillOnTender(t *testing.T) {
	tenders := newFakeTenderRepo()
	bids := newFakeBidRepo(tenders)
	svc := newBidService(bids, tenders, &fakeNotifier{})

	notAwarded := &models.Tender{Status: models.OpenTender}
	assert.False(t, svc.IsStandstillPeriodEnded(notAwarded))
	assert.Equal(t, 0, svc.GetRemainingStandstillDays(notAwarded))

	end := fixedNow.AddDate(0, 0, 4)
	awarded := &models.Tender{Status: models.AwardedTender, StandstillEndDate: &end}
	assert.False(t, svc.IsStandstillPeriodEnded(awarded))
	assert.Equal(t, 4, svc.GetRemainingStandstillDays(awarded))

	past := fixedNow.AddDate(0, 0, -1)
	done := &models.Tender{Status: models.AwardedTender, StandstillEndDate: &past}
	assert.True(t, svc.IsStandstillPeriodEnded(done))
	assert.Equal(t, 0, svc.GetRemainingStandstillDays(done))
}
