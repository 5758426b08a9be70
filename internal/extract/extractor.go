// Package extract filters candidate tokens before matching. It removes
// phone/fax-shaped numbers and configured noise terms so they never reach
// the client or product matchers.
package extract

import (
	"strings"
	"unicode"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/model"
)

// Extractor annotates candidate tokens with exclusion decisions. The same
// filter runs for client-name and product-code candidates.
type Extractor struct {
	cfg        config.ExtractConfig
	noiseTerms map[string]bool
}

// NewExtractor creates an extractor with the given configuration.
func NewExtractor(cfg config.ExtractConfig) *Extractor {
	noise := make(map[string]bool, len(cfg.NoiseTerms))
	for _, term := range cfg.NoiseTerms {
		noise[strings.ToLower(strings.TrimSpace(term))] = true
	}
	return &Extractor{cfg: cfg, noiseTerms: noise}
}

// Examine applies the exclusion rules to a single token, first match wins.
func (e *Extractor) Examine(text string, position int) model.CandidateToken {
	token := model.CandidateToken{
		Text:     strings.TrimSpace(text),
		Kind:     classify(text),
		Position: position,
	}

	if e.IsPhoneShaped(token.Text) {
		token.Excluded = true
		token.ExclusionReason = model.ExcludedPhoneNumber
		// A genuine product code can look like a phone number; keep a trace
		// for manual review instead of dropping it silently.
		common.LogWarn("candidate excluded as phone/fax shape", common.Fields{
			"token":    token.Text,
			"position": position,
		})
		return token
	}

	if e.noiseTerms[strings.ToLower(token.Text)] {
		token.Excluded = true
		token.ExclusionReason = model.ExcludedNoiseTerm
		return token
	}

	return token
}

// Filter examines a list of raw candidate strings and returns only the
// retained tokens.
func (e *Extractor) Filter(candidates []string) []model.CandidateToken {
	kept := make([]model.CandidateToken, 0, len(candidates))
	for i, c := range candidates {
		token := e.Examine(c, i)
		if !token.Excluded {
			kept = append(kept, token)
		}
	}
	return kept
}

// IsPhoneShaped reports whether a token looks like a phone or fax number:
// a 10-digit national number, an 11-15 digit number with a recognized
// international prefix, or a repetitive digit pattern.
func (e *Extractor) IsPhoneShaped(text string) bool {
	trimmed := strings.TrimSpace(text)
	hasPlus := strings.HasPrefix(trimmed, "+")
	digits := digitsOf(trimmed)
	if digits == "" || len(digits) != len(compactOf(trimmed)) {
		// Mixed alphanumeric tokens are codes, not phone numbers.
		return false
	}

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return true
	case hasPlus && len(digits) >= 9 && len(digits) <= 14 && e.hasIntlPrefix(digits):
		return true
	case strings.HasPrefix(digits, "00") && len(digits) >= 11 && len(digits) <= 15 && e.hasIntlPrefix(digits[2:]):
		return true
	case len(digits) >= 11 && len(digits) <= 15 && e.hasIntlPrefix(digits):
		return true
	case len(digits) >= 7 && isRepetitive(digits):
		return true
	}
	return false
}

func (e *Extractor) hasIntlPrefix(digits string) bool {
	for _, prefix := range e.cfg.IntlPrefixes {
		if strings.HasPrefix(digits, prefix) {
			return true
		}
	}
	return false
}

// classify detects the shape of a token.
func classify(text string) model.TokenKind {
	hasLetter := false
	hasDigit := false
	hasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
			hasSpace = true
		}
	}
	switch {
	case hasDigit && !hasLetter:
		return model.TokenNumericCode
	case hasDigit && hasLetter && !hasSpace:
		return model.TokenAlphanumericCode
	default:
		return model.TokenWordSequence
	}
}

// digitsOf keeps only the digit runes of a token.
func digitsOf(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// compactOf strips the separators a phone number is usually written with.
func compactOf(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '+', ' ', '.', '-', '(', ')', '/':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isRepetitive detects degenerate digit strings: all digits identical or a
// simple arithmetic sequence such as 1234567890.
func isRepetitive(digits string) bool {
	if len(digits) < 3 {
		return false
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}

	step := int(digits[1]) - int(digits[0])
	if step != 1 && step != -1 {
		return false
	}
	for i := 1; i < len(digits); i++ {
		diff := int(digits[i]) - int(digits[i-1])
		if diff != step && !wrapsAround(digits[i-1], digits[i], step) {
			return false
		}
	}
	return true
}

// wrapsAround allows sequences like 8901 or 2109 to stay arithmetic.
func wrapsAround(prev, cur byte, step int) bool {
	if step == 1 {
		return prev == '9' && cur == '0'
	}
	return prev == '0' && cur == '9'
}
