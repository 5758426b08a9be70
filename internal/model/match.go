package model

import (
	"fmt"
	"sort"
)

// MatchStrategy identifies which heuristic produced a match score.
type MatchStrategy string

// Client matching strategies, in precedence order.
const (
	StrategyDomainAndName MatchStrategy = "DOMAIN_AND_NAME"
	StrategyDomain        MatchStrategy = "DOMAIN"
	StrategyExactName     MatchStrategy = "EXACT_NAME"
	StrategyFuzzyName     MatchStrategy = "FUZZY_NAME"
	StrategyKeyword       MatchStrategy = "KEYWORD"
)

// Product matching strategies, in precedence order.
const (
	StrategyExactCode  MatchStrategy = "EXACT_CODE"
	StrategyCodePrefix MatchStrategy = "CODE_PREFIX"
)

// strategyPrecedence maps each strategy to its evaluation rank. Lower rank
// wins ties. Client and product strategies share the table since the two
// matchers never compete against each other.
var strategyPrecedence = map[MatchStrategy]int{
	StrategyDomainAndName: 0,
	StrategyExactCode:     0,
	StrategyDomain:        1,
	StrategyCodePrefix:    1,
	StrategyExactName:     2,
	StrategyFuzzyName:     3,
	StrategyKeyword:       4,
}

// Precedence returns the rank of the strategy; lower ranks win ties.
func (s MatchStrategy) Precedence() int {
	if p, ok := strategyPrecedence[s]; ok {
		return p
	}
	return len(strategyPrecedence)
}

// MatchResult is one scored candidate produced by a matching pass.
type MatchResult struct {
	EntityID string
	Name     string
	Score    float64
	Strategy MatchStrategy
	Token    string
}

// Validate ensures the match result carries a legal score.
func (m *MatchResult) Validate() error {
	if m.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if m.Score < 0 || m.Score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %.2f", m.Score)
	}
	return nil
}

// MatchResults is an ordered list of match results.
type MatchResults []MatchResult

// Sort orders results descending by score; ties are broken by strategy
// precedence, then entity id so identical inputs always produce identical
// output.
func (r MatchResults) Sort() {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Score != r[j].Score {
			return r[i].Score > r[j].Score
		}
		if r[i].Strategy.Precedence() != r[j].Strategy.Precedence() {
			return r[i].Strategy.Precedence() < r[j].Strategy.Precedence()
		}
		return r[i].EntityID < r[j].EntityID
	})
}

// Top returns the highest-ranked result, or nil if empty.
func (r MatchResults) Top() *MatchResult {
	if len(r) == 0 {
		return nil
	}
	return &r[0]
}

// Ambiguous reports whether the two leading results tie at the same score
// and the same strategy precedence while naming different entities. Such a
// result set must be resolved by a human, never auto-picked.
func (r MatchResults) Ambiguous() bool {
	if len(r) < 2 {
		return false
	}
	a, b := r[0], r[1]
	return a.EntityID != b.EntityID &&
		a.Score == b.Score &&
		a.Strategy.Precedence() == b.Strategy.Precedence()
}

// EntityIDs returns the matched entity ids in rank order, without duplicates.
func (r MatchResults) EntityIDs() []string {
	seen := make(map[string]bool, len(r))
	ids := make([]string, 0, len(r))
	for _, m := range r {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			ids = append(ids, m.EntityID)
		}
	}
	return ids
}
