package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/dedup"
	"github.com/celikd/orderdesk/internal/directory"
	"github.com/celikd/orderdesk/internal/engine"
	"github.com/celikd/orderdesk/internal/extract"
	"github.com/celikd/orderdesk/internal/match"
	"github.com/celikd/orderdesk/internal/model"
	"github.com/celikd/orderdesk/internal/pricing"
	"github.com/celikd/orderdesk/internal/storage"
	"github.com/celikd/orderdesk/internal/testutil"
)

func newTestProcessor(t *testing.T) (*engine.Processor, *storage.SQLiteStorage) {
	t.Helper()
	store := testutil.SetupTestDB(t)
	cfg := config.Default()

	testutil.SeedCatalog(t, store,
		[]model.Client{
			{ID: "cl-marmara", Name: "Marmara Cam", Domains: []string{"marmaracam.com.tr"}},
			{ID: "cl-nordfenster", Name: "Nordfenster GmbH", Domains: []string{"nordfenster.de"}},
		},
		[]model.Product{
			{ID: "pr-c0249", Code: "C0249", Name: "Tempered Glass Panel"},
			{ID: "pr-4521", Code: "4521", Name: "Aluminium Frame Kit"},
		})

	ctx := context.Background()
	require.NoError(t, store.AddSupplierPrice(ctx, "pr-c0249",
		model.PricePoint{Date: testutil.DaysAgo(10), Price: testutil.Price(t, "200.00")}))

	processor := engine.NewProcessor(
		extract.NewExtractor(cfg.Extract),
		directory.NewClientCache(store, cfg.Directory.CacheTTL),
		directory.NewProductCache(store, cfg.Directory.CacheTTL),
		match.NewClientMatcher(cfg.Matching),
		match.NewProductMatcher(cfg.Matching),
		dedup.NewDetector(store, cfg.Dedup),
		pricing.NewEngine(store, store, cfg.Pricing),
		store,
		store,
	)
	return processor, store
}

func glassOrder(at time.Time) engine.InboundRequest {
	return engine.InboundRequest{
		Sender:            "satis@marmaracam.com.tr",
		Subject:           "Order for tempered glass",
		Body:              "Hello, Marmara Cam needs panels, reference C0249.",
		ProductCandidates: []string{"C0249"},
		Quantities:        map[string]int{"C0249": 50},
		ReceivedAt:        at,
	}
}

func TestProcessEndToEnd(t *testing.T) {
	processor, store := newTestProcessor(t)
	ctx := context.Background()

	proposal, err := processor.Process(ctx, glassOrder(time.Now().UTC()))
	require.NoError(t, err)

	assert.Equal(t, model.RequestProcessed, proposal.Status)
	require.NotNil(t, proposal.ClientMatches.Top())
	assert.Equal(t, "cl-marmara", proposal.ClientMatches.Top().EntityID)
	assert.Equal(t, model.DuplicateNone, proposal.Duplicate.Type)

	require.Len(t, proposal.Decisions, 1)
	d := proposal.Decisions[0]
	assert.Equal(t, model.CaseNeverSold, d.Case, "no sales history seeded")
	// 200.00 * 1.45 = 290.00
	assert.True(t, d.UnitPrice.Equal(decimal.RequireFromString("290.00")), "got %s", d.UnitPrice)
	assert.Equal(t, 50, d.Input.Quantity)
	assert.Equal(t, proposal.RequestID, d.RequestID)

	// Proposal landed in the ledger.
	stored, err := store.ListDecisionsForRequest(ctx, proposal.RequestID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcessStrictDuplicateShortCircuits(t *testing.T) {
	processor, store := newTestProcessor(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := processor.Process(ctx, glassOrder(now))
	require.NoError(t, err)
	require.Equal(t, model.RequestProcessed, first.Status)

	second, err := processor.Process(ctx, glassOrder(now.Add(2*time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, model.DuplicateStrict, second.Duplicate.Type)
	assert.Equal(t, first.RequestID, second.RequestID, "prior outcome returned")
	assert.Empty(t, second.Decisions, "no new pricing on a strict duplicate")
	require.Len(t, second.PriorDecisions, 1)
	assert.Equal(t, first.Decisions[0].ID, second.PriorDecisions[0].ID)

	// The ledger still holds exactly one decision for the request.
	stored, err := store.ListDecisionsForRequest(ctx, first.RequestID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcessIdenticalRequestAfterLookbackWindow(t *testing.T) {
	processor, store := newTestProcessor(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := processor.Process(ctx, glassOrder(now.AddDate(0, 0, -60)))
	require.NoError(t, err)
	require.Equal(t, model.RequestProcessed, first.Status)

	// The same order two months later is a new request, not a duplicate:
	// it gets fresh pricing and its own ledger record.
	second, err := processor.Process(ctx, glassOrder(now))
	require.NoError(t, err)

	assert.Equal(t, model.DuplicateNone, second.Duplicate.Type)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	require.Len(t, second.Decisions, 1)
	assert.Equal(t, second.RequestID, second.Decisions[0].RequestID)

	stored, err := store.ListDecisionsForRequest(ctx, second.RequestID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// The expired record stays in the ledger, retired and linked forward.
	requests, err := store.ListRequests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	for _, r := range requests {
		if r.ID != first.RequestID {
			continue
		}
		assert.Equal(t, model.RequestSuperseded, r.Status)
		assert.Equal(t, second.RequestID, r.SupersededBy)
	}
}

func TestProcessAmbiguousClientNeedsReview(t *testing.T) {
	processor, store := newTestProcessor(t)
	ctx := context.Background()

	// A second client claiming the same domain makes the domain strategy tie.
	testutil.SeedCatalog(t, store,
		[]model.Client{{ID: "cl-clone", Name: "Marmara Trading", Domains: []string{"marmaracam.com.tr"}}}, nil)

	proposal, err := processor.Process(ctx, engine.InboundRequest{
		Sender:            "satis@marmaracam.com.tr",
		Subject:           "Order",
		Body:              "reference C0249 please",
		ProductCandidates: []string{"C0249"},
		ReceivedAt:        time.Now().UTC(),
	})
	require.NoError(t, err, "ambiguity is a review outcome, not a failure")

	assert.Equal(t, model.RequestNeedsReview, proposal.Status)
	assert.Contains(t, proposal.ReviewReason, "cl-clone")
	assert.Contains(t, proposal.ReviewReason, "cl-marmara")
	assert.GreaterOrEqual(t, len(proposal.ClientMatches), 2)
	assert.Empty(t, proposal.Decisions)
}

func TestProcessNoClientNeedsReview(t *testing.T) {
	processor, _ := newTestProcessor(t)

	proposal, err := processor.Process(context.Background(), engine.InboundRequest{
		Sender:     "unknown@elsewhere.example",
		Subject:    "hello",
		Body:       "is anyone there",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestNeedsReview, proposal.Status)
	assert.Empty(t, proposal.Decisions)
}

func TestProcessNoProductNeedsReview(t *testing.T) {
	processor, _ := newTestProcessor(t)

	proposal, err := processor.Process(context.Background(), engine.InboundRequest{
		Sender:     "satis@marmaracam.com.tr",
		Subject:    "general question",
		Body:       "what are your delivery times",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestNeedsReview, proposal.Status)
	require.NotNil(t, proposal.ClientMatches.Top())
	assert.Equal(t, "cl-marmara", proposal.ClientMatches.Top().EntityID)
}

func TestProcessPhoneShapedCandidateIsExcluded(t *testing.T) {
	processor, _ := newTestProcessor(t)

	// The only product candidate is a phone number: nothing to price.
	proposal, err := processor.Process(context.Background(), engine.InboundRequest{
		Sender:            "satis@marmaracam.com.tr",
		Subject:           "call me",
		Body:              "you can reach us at the number below",
		ProductCandidates: []string{"0612345678"},
		ReceivedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestNeedsReview, proposal.Status)
}

func TestProcessMissingSupplierPriceFails(t *testing.T) {
	processor, _ := newTestProcessor(t)

	// pr-4521 has no supplier price point seeded.
	_, err := processor.Process(context.Background(), engine.InboundRequest{
		Sender:            "satis@marmaracam.com.tr",
		Subject:           "frames",
		Body:              "need the frame kit",
		ProductCandidates: []string{"4521"},
		ReceivedAt:        time.Now().UTC(),
	})
	require.ErrorIs(t, err, common.ErrInvalidReference)
}

func TestProcessRepeatSaleReusesStablePrice(t *testing.T) {
	processor, store := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, store.AddSale(ctx, "pr-c0249", model.Sale{
		Date:     testutil.DaysAgo(20),
		Price:    testutil.Price(t, "310.00"),
		Quantity: 40,
		ClientID: "cl-marmara",
	}))

	proposal, err := processor.Process(ctx, glassOrder(time.Now().UTC()))
	require.NoError(t, err)

	require.Len(t, proposal.Decisions, 1)
	d := proposal.Decisions[0]
	assert.Equal(t, model.CaseStableRepeat, d.Case, "supplier price unchanged since the sale")
	assert.True(t, d.UnitPrice.Equal(decimal.RequireFromString("310.00")), "got %s", d.UnitPrice)
	assert.False(t, d.RequiresValidation)
}
