package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/dedup"
	"github.com/celikd/orderdesk/internal/model"
	"github.com/celikd/orderdesk/internal/storage"
	"github.com/celikd/orderdesk/internal/testutil"
)

func newDetector(t *testing.T) (*dedup.Detector, *storage.SQLiteStorage) {
	t.Helper()
	store := testutil.SetupTestDB(t)
	return dedup.NewDetector(store, config.Default().Dedup), store
}

func recordRequest(t *testing.T, store *storage.SQLiteStorage, sender, clientID string, productIDs []string, subject string, at time.Time) *model.ProcessedRequest {
	t.Helper()
	fp := model.NewFingerprint(sender, clientID, productIDs, at)
	record := &model.ProcessedRequest{
		ID:            uuid.NewString(),
		Fingerprint:   fp,
		Hash:          fp.Hash(),
		Subject:       subject,
		FirstSeen:     at,
		OutcomeRef:    "outcome-" + uuid.NewString()[:8],
		Status:        model.RequestProcessed,
		DuplicateFlag: model.DuplicateNone,
	}
	inserted, err := store.InsertIfAbsent(context.Background(), record)
	require.NoError(t, err)
	require.True(t, inserted)
	return record
}

func TestCheckStrictDuplicate(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	prior := recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1", "pr-2"}, "order please", now.AddDate(0, 0, -3))

	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "Buyer@client.example",
		ClientID:   "cl-1",
		ProductIDs: []string{"pr-2", "pr-1"},
		Subject:    "order please again",
		ReceivedAt: now,
	})
	require.NoError(t, err)

	assert.True(t, check.IsDuplicate)
	assert.Equal(t, model.DuplicateStrict, check.Type)
	assert.Equal(t, 1.0, check.Confidence)
	assert.Equal(t, prior.ID, check.PriorRequestID)
	assert.Equal(t, prior.OutcomeRef, check.PriorOutcomeRef)
	assert.True(t, check.ShortCircuits())
}

func TestCheckStrictOutsideLookbackWindow(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	// Same fingerprint but 40 days old: outside the 30-day window.
	recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1"}, "old order", now.AddDate(0, 0, -40))

	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "buyer@client.example",
		ClientID:   "cl-1",
		ProductIDs: []string{"pr-1"},
		Subject:    "totally new order",
		ReceivedAt: now,
	})
	require.NoError(t, err)
	assert.False(t, check.IsDuplicate)
	assert.Equal(t, model.DuplicateNone, check.Type)
}

func TestCheckProbableDuplicate(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	prior := recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1", "pr-2", "pr-3"}, "quarterly order", now.AddDate(0, 0, -5))

	// Two of four products in the union overlap: jaccard 0.5.
	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "buyer@client.example",
		ClientID:   "cl-1",
		ProductIDs: []string{"pr-1", "pr-2", "pr-9"},
		Subject:    "something different entirely",
		ReceivedAt: now,
	})
	require.NoError(t, err)

	assert.True(t, check.IsDuplicate)
	assert.Equal(t, model.DuplicateProbable, check.Type)
	assert.Equal(t, prior.ID, check.PriorRequestID)
	assert.InDelta(t, 0.70, check.Confidence, 0.001, "overlap at the floor maps to the floor confidence")
	assert.False(t, check.ShortCircuits())
}

func TestCheckProbableSupersetOverlap(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	// A strict superset of the prior product set is not a strict duplicate
	// but overlaps at 2/3.
	recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1", "pr-2"}, "order", now.AddDate(0, 0, -2))

	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "buyer@client.example",
		ClientID:   "cl-1",
		ProductIDs: []string{"pr-1", "pr-2", "pr-3"},
		Subject:    "unrelated subject line",
		ReceivedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateProbable, check.Type)
	assert.InDelta(t, 0.70+(2.0/3.0-0.5)/0.5*0.25, check.Confidence, 0.001)
}

func TestCheckPossibleDuplicateBySubject(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	// Different sender, same client, near-identical subject.
	prior := recordRequest(t, store,
		"alice@client.example", "cl-1", []string{"pr-1"}, "Urgent order for tempered glass", now.AddDate(0, 0, -1))

	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "bob@client.example",
		ClientID:   "cl-1",
		ProductIDs: []string{"pr-7"},
		Subject:    "Urgent order for tempered glass!",
		ReceivedAt: now,
	})
	require.NoError(t, err)

	assert.True(t, check.IsDuplicate)
	assert.Equal(t, model.DuplicatePossible, check.Type)
	assert.Equal(t, prior.ID, check.PriorRequestID)
	assert.GreaterOrEqual(t, check.Confidence, 0.8)
}

func TestCheckNoDuplicate(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	recordRequest(t, store,
		"alice@client.example", "cl-1", []string{"pr-1"}, "glass order", now.AddDate(0, 0, -1))

	check, err := d.Check(context.Background(), dedup.Incoming{
		Sender:     "other@elsewhere.example",
		ClientID:   "cl-2",
		ProductIDs: []string{"pr-9"},
		Subject:    "frame kits",
		ReceivedAt: now,
	})
	require.NoError(t, err)
	assert.False(t, check.IsDuplicate)
	assert.Equal(t, model.DuplicateNone, check.Type)
	assert.Empty(t, check.PriorRequestID)
}

func TestRecordConflictReclassifiesAsStrict(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	winner := recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1"}, "order", now)

	fp := model.NewFingerprint("buyer@client.example", "cl-1", []string{"pr-1"}, now)
	loser := &model.ProcessedRequest{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Hash:        fp.Hash(),
		Subject:     "order",
		FirstSeen:   now,
		OutcomeRef:  "outcome-loser",
		Status:      model.RequestProcessed,
	}

	err := d.Record(context.Background(), loser)
	require.ErrorIs(t, err, common.ErrConflictingWrite)

	check, expired, err := d.Reclassify(context.Background(), fp, now)
	require.NoError(t, err)
	require.Nil(t, expired)
	assert.Equal(t, model.DuplicateStrict, check.Type)
	assert.Equal(t, winner.ID, check.PriorRequestID)
	assert.Equal(t, winner.OutcomeRef, check.PriorOutcomeRef)
}

func TestReclassifyReturnsExpiredPrior(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	// The fingerprint is held by a record well outside the 30-day window.
	old := recordRequest(t, store,
		"buyer@client.example", "cl-1", []string{"pr-1"}, "old order", now.AddDate(0, 0, -60))

	fp := model.NewFingerprint("buyer@client.example", "cl-1", []string{"pr-1"}, now)
	check, expired, err := d.Reclassify(context.Background(), fp, now)
	require.NoError(t, err)
	require.NotNil(t, expired)
	assert.Equal(t, old.ID, expired.ID)
	assert.False(t, check.IsDuplicate, "an expired prior is not a strict duplicate")
}

func TestRecordInsertsNewFingerprint(t *testing.T) {
	d, store := newDetector(t)
	now := time.Now().UTC()

	fp := model.NewFingerprint("buyer@client.example", "cl-1", []string{"pr-1"}, now)
	record := &model.ProcessedRequest{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Hash:        fp.Hash(),
		FirstSeen:   now,
		Status:      model.RequestProcessed,
	}
	require.NoError(t, d.Record(context.Background(), record))

	found, err := store.Find(context.Background(), fp.Hash())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record.ID, found.ID)
}
