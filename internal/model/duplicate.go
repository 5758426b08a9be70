package model

// DuplicateType classifies how confident the detector is that a request has
// been seen before.
type DuplicateType string

// Duplicate classification tiers, strongest first.
const (
	DuplicateStrict   DuplicateType = "STRICT"
	DuplicateProbable DuplicateType = "PROBABLE"
	DuplicatePossible DuplicateType = "POSSIBLE"
	DuplicateNone     DuplicateType = "NONE"
)

// DuplicateCheck is the outcome of a duplicate classification.
type DuplicateCheck struct {
	IsDuplicate     bool
	Type            DuplicateType
	Confidence      float64
	PriorRequestID  string
	PriorOutcomeRef string
}

// ShortCircuits reports whether the pipeline must stop and return the prior
// outcome instead of computing new pricing decisions.
func (d DuplicateCheck) ShortCircuits() bool {
	return d.Type == DuplicateStrict
}
