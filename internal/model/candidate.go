package model

// TokenKind describes the detected shape of a candidate token.
type TokenKind string

// Token kinds.
const (
	TokenAlphanumericCode TokenKind = "ALPHANUMERIC_CODE"
	TokenNumericCode      TokenKind = "NUMERIC_CODE"
	TokenWordSequence     TokenKind = "WORD_SEQUENCE"
)

// ExclusionReason explains why the extractor dropped a candidate token.
type ExclusionReason string

// Exclusion reasons.
const (
	ExcludedPhoneNumber ExclusionReason = "PHONE_OR_FAX"
	ExcludedNoiseTerm   ExclusionReason = "NOISE_TERM"
)

// CandidateToken is a contiguous text fragment identified as a potential
// client name or product code. Tokens are created during extraction and never
// mutated afterwards.
type CandidateToken struct {
	Text            string
	Kind            TokenKind
	Position        int
	Excluded        bool
	ExclusionReason ExclusionReason
}
