// Package dedup classifies incoming requests against the ledger of already
// processed requests, with tiered confidence.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/match"
	"github.com/celikd/orderdesk/internal/model"
)

// RequestStore is the processed-request side of the decision ledger.
type RequestStore interface {
	// Find returns the record with the given fingerprint hash, or nil.
	Find(ctx context.Context, hash string) (*model.ProcessedRequest, error)
	// FindRecentBySender returns records from this sender since the cutoff.
	FindRecentBySender(ctx context.Context, sender string, since time.Time) ([]model.ProcessedRequest, error)
	// FindRecentByClient returns records for this client since the cutoff.
	FindRecentByClient(ctx context.Context, clientID string, since time.Time) ([]model.ProcessedRequest, error)
	// InsertIfAbsent atomically inserts the record unless an active record
	// already holds its fingerprint hash. Returns false on conflict.
	InsertIfAbsent(ctx context.Context, record *model.ProcessedRequest) (bool, error)
}

// Detector classifies incoming requests as strict, probable or possible
// duplicates of previously processed ones.
type Detector struct {
	store RequestStore
	cfg   config.DedupConfig
}

// NewDetector creates a duplicate detector over the given store.
func NewDetector(store RequestStore, cfg config.DedupConfig) *Detector {
	return &Detector{store: store, cfg: cfg}
}

// Incoming describes the resolved request being checked.
type Incoming struct {
	Sender     string
	ClientID   string
	ProductIDs []string
	Subject    string
	ReceivedAt time.Time
}

// Check classifies the incoming request. Rules are evaluated in order and
// the first match decides.
func (d *Detector) Check(ctx context.Context, in Incoming) (model.DuplicateCheck, error) {
	fp := model.NewFingerprint(in.Sender, in.ClientID, in.ProductIDs, in.ReceivedAt)
	cutoff := in.ReceivedAt.Add(-d.cfg.LookbackWindow)

	// Strict: identical fingerprint within the lookback window.
	prior, err := d.store.Find(ctx, fp.Hash())
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	if prior != nil && prior.FirstSeen.After(cutoff) {
		return strictOf(prior), nil
	}

	// Probable: same sender and client with enough product overlap.
	recent, err := d.store.FindRecentBySender(ctx, fp.Sender, cutoff)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("failed to load recent requests: %w", err)
	}
	for i := range recent {
		r := &recent[i]
		if r.Fingerprint.ClientID != in.ClientID {
			continue
		}
		overlap := jaccard(in.ProductIDs, r.Fingerprint.ProductIDs)
		if overlap >= d.cfg.ProbableOverlap {
			confidence := 0.70 + (overlap-d.cfg.ProbableOverlap)/(1-d.cfg.ProbableOverlap)*0.25
			if overlap >= 1 {
				confidence = 0.95
			}
			return model.DuplicateCheck{
				IsDuplicate:     true,
				Type:            model.DuplicateProbable,
				Confidence:      confidence,
				PriorRequestID:  r.ID,
				PriorOutcomeRef: r.OutcomeRef,
			}, nil
		}
	}

	// Possible: same client with a near-identical subject line, regardless
	// of sender.
	byClient, err := d.store.FindRecentByClient(ctx, in.ClientID, cutoff)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("failed to load client requests: %w", err)
	}
	subject := match.Normalize(in.Subject)
	if subject != "" {
		for i := range byClient {
			r := &byClient[i]
			sim := match.Similarity(subject, match.Normalize(r.Subject))
			if sim >= d.cfg.PossibleSubjectSimilarity {
				return model.DuplicateCheck{
					IsDuplicate:     true,
					Type:            model.DuplicatePossible,
					Confidence:      sim,
					PriorRequestID:  r.ID,
					PriorOutcomeRef: r.OutcomeRef,
				}, nil
			}
		}
	}

	return model.DuplicateCheck{Type: model.DuplicateNone}, nil
}

// Record inserts the processed-request record. A fingerprint conflict means
// another writer won the race: the caller must treat the request as a strict
// duplicate of the winner, never as a failure.
func (d *Detector) Record(ctx context.Context, record *model.ProcessedRequest) error {
	inserted, err := d.store.InsertIfAbsent(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if !inserted {
		return common.ErrConflictingWrite
	}
	return nil
}

// Reclassify resolves a conflicting write. A conflicting record first seen
// within the lookback window is the strict duplicate it actually is; one
// older than the window is returned as expired so the caller can retire it
// and record the fresh outcome.
func (d *Detector) Reclassify(ctx context.Context, fp model.Fingerprint, at time.Time) (model.DuplicateCheck, *model.ProcessedRequest, error) {
	prior, err := d.store.Find(ctx, fp.Hash())
	if err != nil {
		return model.DuplicateCheck{}, nil, fmt.Errorf("failed to reload conflicting record: %w", err)
	}
	if prior == nil {
		return model.DuplicateCheck{}, nil, fmt.Errorf("conflicting record vanished: %w", common.ErrNotFound)
	}
	if !prior.FirstSeen.After(at.Add(-d.cfg.LookbackWindow)) {
		return model.DuplicateCheck{}, prior, nil
	}
	return strictOf(prior), nil, nil
}

func strictOf(prior *model.ProcessedRequest) model.DuplicateCheck {
	return model.DuplicateCheck{
		IsDuplicate:     true,
		Type:            model.DuplicateStrict,
		Confidence:      1.0,
		PriorRequestID:  prior.ID,
		PriorOutcomeRef: prior.OutcomeRef,
	}
}

// jaccard computes the set-overlap ratio of two id sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, id := range b {
		if seen[id] {
			continue
		}
		seen[id] = true
		if set[id] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
