package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchResultsSortIsDeterministic(t *testing.T) {
	results := MatchResults{
		{EntityID: "b", Score: 95, Strategy: StrategyDomain},
		{EntityID: "a", Score: 95, Strategy: StrategyDomain},
		{EntityID: "c", Score: 95, Strategy: StrategyDomainAndName},
		{EntityID: "d", Score: 98, Strategy: StrategyKeyword},
	}
	results.Sort()

	// Score first, then strategy precedence, then entity id.
	assert.Equal(t, "d", results[0].EntityID)
	assert.Equal(t, "c", results[1].EntityID)
	assert.Equal(t, "a", results[2].EntityID)
	assert.Equal(t, "b", results[3].EntityID)
}

func TestMatchResultsAmbiguous(t *testing.T) {
	tied := MatchResults{
		{EntityID: "a", Score: 95, Strategy: StrategyDomain},
		{EntityID: "b", Score: 95, Strategy: StrategyDomain},
	}
	assert.True(t, tied.Ambiguous())

	differentScore := MatchResults{
		{EntityID: "a", Score: 97, Strategy: StrategyDomainAndName},
		{EntityID: "b", Score: 95, Strategy: StrategyDomain},
	}
	assert.False(t, differentScore.Ambiguous())

	differentPrecedence := MatchResults{
		{EntityID: "a", Score: 90, Strategy: StrategyExactName},
		{EntityID: "b", Score: 90, Strategy: StrategyFuzzyName},
	}
	assert.False(t, differentPrecedence.Ambiguous())

	single := MatchResults{{EntityID: "a", Score: 95, Strategy: StrategyDomain}}
	assert.False(t, single.Ambiguous())
}

func TestMatchResultsEntityIDs(t *testing.T) {
	results := MatchResults{
		{EntityID: "a", Score: 98, Strategy: StrategyDomainAndName},
		{EntityID: "b", Score: 95, Strategy: StrategyDomain},
		{EntityID: "a", Score: 90, Strategy: StrategyExactName},
	}
	assert.Equal(t, []string{"a", "b"}, results.EntityIDs(), "rank order, no repeats")
}

func TestMatchResultValidate(t *testing.T) {
	good := MatchResult{EntityID: "a", Score: 95, Strategy: StrategyDomain}
	assert.NoError(t, good.Validate())

	assert.Error(t, (&MatchResult{Score: 95}).Validate())
	assert.Error(t, (&MatchResult{EntityID: "a", Score: 101}).Validate())
}

func TestDuplicateCheckShortCircuits(t *testing.T) {
	assert.True(t, DuplicateCheck{IsDuplicate: true, Type: DuplicateStrict}.ShortCircuits())
	assert.False(t, DuplicateCheck{IsDuplicate: true, Type: DuplicateProbable}.ShortCircuits())
	assert.False(t, DuplicateCheck{IsDuplicate: true, Type: DuplicatePossible}.ShortCircuits())
	assert.False(t, DuplicateCheck{Type: DuplicateNone}.ShortCircuits())
}
