package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// RequestStatus tracks the lifecycle of a processed request record.
type RequestStatus string

// Request status constants.
const (
	RequestProcessed   RequestStatus = "PROCESSED"
	RequestNeedsReview RequestStatus = "NEEDS_REVIEW"
	RequestSuperseded  RequestStatus = "SUPERSEDED"
)

// Fingerprint is the duplicate-detection key: who asked, for whom, for what,
// and roughly when.
type Fingerprint struct {
	Sender     string
	ClientID   string
	ProductIDs []string
	TimeBucket time.Time
}

// NewFingerprint builds a fingerprint with a normalized sender, sorted
// product set and the timestamp truncated to its day bucket.
func NewFingerprint(sender, clientID string, productIDs []string, at time.Time) Fingerprint {
	ids := make([]string, len(productIDs))
	copy(ids, productIDs)
	sort.Strings(ids)
	return Fingerprint{
		Sender:     strings.ToLower(strings.TrimSpace(sender)),
		ClientID:   clientID,
		ProductIDs: ids,
		TimeBucket: at.UTC().Truncate(24 * time.Hour),
	}
}

// Hash returns the stable hex digest used as the store's unique key. The
// time bucket is deliberately left out: the lookback window is enforced by
// the detector, which retires an expired holder of the hash before a new
// record takes it over.
func (f Fingerprint) Hash() string {
	h := sha256.New()
	h.Write([]byte(f.Sender))
	h.Write([]byte{0})
	h.Write([]byte(f.ClientID))
	for _, id := range f.ProductIDs {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ProcessedRequest is the append-only record of a fully resolved request.
type ProcessedRequest struct {
	ID            string
	Fingerprint   Fingerprint
	Hash          string
	Subject       string
	FirstSeen     time.Time
	OutcomeRef    string
	Status        RequestStatus
	DuplicateFlag DuplicateType
	SupersededBy  string
}
