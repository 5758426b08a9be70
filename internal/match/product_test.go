package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/model"
)

func testProducts() []model.Product {
	return []model.Product{
		{ID: "pr-c0249", Code: "C0249", Name: "Tempered Glass Panel"},
		{ID: "pr-c0249b", Code: "C0249-B", Name: "Tempered Glass Panel Blue"},
		{ID: "pr-4521", Code: "4521", Name: "Aluminium Frame Kit"},
	}
}

func newProductMatcher() *ProductMatcher {
	return NewProductMatcher(config.Default().Matching)
}

func tokens(texts ...string) []model.CandidateToken {
	out := make([]model.CandidateToken, 0, len(texts))
	for i, t := range texts {
		out = append(out, model.CandidateToken{Text: t, Position: i})
	}
	return out
}

func TestProductMatchExactCode(t *testing.T) {
	m := newProductMatcher()

	results := m.Match(MessageInput{
		Body:       "please quote 50 units",
		Candidates: tokens("C0249"),
	}, testProducts())
	require.NotNil(t, results.Top())

	top := results.Top()
	assert.Equal(t, "pr-c0249", top.EntityID)
	assert.Equal(t, 100.0, top.Score)
	assert.Equal(t, model.StrategyExactCode, top.Strategy)
}

func TestProductMatchExactCodeIgnoresSeparators(t *testing.T) {
	m := newProductMatcher()

	results := m.Match(MessageInput{
		Candidates: tokens("c 0249-b"),
	}, testProducts())
	require.NotNil(t, results.Top())
	assert.Equal(t, "pr-c0249b", results.Top().EntityID)
	assert.Equal(t, 100.0, results.Top().Score)
}

func TestProductMatchCodePrefix(t *testing.T) {
	m := newProductMatcher()

	// C0249 is a strict prefix of C0249-B once normalized.
	results := m.Match(MessageInput{
		Candidates: tokens("C0249"),
	}, testProducts())
	require.Len(t, results, 2)

	assert.Equal(t, "pr-c0249", results[0].EntityID)
	assert.Equal(t, 100.0, results[0].Score)
	assert.Equal(t, "pr-c0249b", results[1].EntityID)
	assert.Equal(t, 90.0, results[1].Score)
	assert.Equal(t, model.StrategyCodePrefix, results[1].Strategy)
}

func TestProductMatchNameNeverScoresHundred(t *testing.T) {
	m := newProductMatcher()

	results := m.Match(MessageInput{
		Body: "we need one tempered glass panel as before",
	}, testProducts())
	require.NotNil(t, results.Top())

	top := results.Top()
	assert.Equal(t, "pr-c0249", top.EntityID)
	assert.Equal(t, model.StrategyExactName, top.Strategy)
	assert.Equal(t, 90.0, top.Score, "only an exact code reaches 100")
}

func TestProductMatchAllKeywordsRequired(t *testing.T) {
	m := newProductMatcher()

	// "aluminium" alone is not enough for the keyword strategy on a
	// two-keyword name; "frame" is missing.
	results := m.Match(MessageInput{
		Body: "some aluminium parts",
	}, testProducts())
	assert.Empty(t, results)

	results = m.Match(MessageInput{
		Body: "aluminium sections to frame the window",
	}, testProducts())
	require.NotNil(t, results.Top())
	assert.Equal(t, "pr-4521", results.Top().EntityID)
	assert.Equal(t, model.StrategyKeyword, results.Top().Strategy)
	assert.GreaterOrEqual(t, results.Top().Score, 65.0)
	assert.LessOrEqual(t, results.Top().Score, 75.0)
}

func TestProductMatchShortCodeNoPrefix(t *testing.T) {
	m := newProductMatcher()

	// 4521 is below the prefix length floor, so "452" matches nothing.
	results := m.Match(MessageInput{
		Candidates: tokens("452"),
	}, testProducts())
	assert.Empty(t, results)
}

func TestProductMatchDeterministicTieOrder(t *testing.T) {
	m := newProductMatcher()
	products := []model.Product{
		{ID: "pr-b", Code: "X100-B", Name: "Widget Blue"},
		{ID: "pr-a", Code: "X100-A", Name: "Widget Amber"},
	}

	// Both codes share the X100 prefix; the tie falls back to entity id.
	results := m.Match(MessageInput{
		Candidates: tokens("X100"),
	}, products)
	require.Len(t, results, 2)
	assert.Equal(t, "pr-a", results[0].EntityID)
	assert.Equal(t, "pr-b", results[1].EntityID)
}
