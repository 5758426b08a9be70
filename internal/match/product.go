package match

import (
	"strings"

	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/model"
)

// minCodePrefixLen is the shortest code fragment considered for prefix
// matching; anything shorter collides too easily.
const minCodePrefixLen = 4

// ProductMatcher scores candidate tokens and message text against the
// product catalog. It is stateless and safe for concurrent use.
type ProductMatcher struct {
	cfg config.MatchingConfig
}

// NewProductMatcher creates a product matcher with the given thresholds.
func NewProductMatcher(cfg config.MatchingConfig) *ProductMatcher {
	return &ProductMatcher{cfg: cfg}
}

type productInput struct {
	body    string
	subject string
	codes   []string
}

type productStrategy struct {
	tag  model.MatchStrategy
	eval func(m *ProductMatcher, in productInput, p model.Product) (float64, bool)
}

var productStrategies = []productStrategy{
	{model.StrategyExactCode, (*ProductMatcher).evalExactCode},
	{model.StrategyCodePrefix, (*ProductMatcher).evalCodePrefix},
	{model.StrategyExactName, (*ProductMatcher).evalExactName},
	{model.StrategyFuzzyName, (*ProductMatcher).evalFuzzyName},
	{model.StrategyKeyword, (*ProductMatcher).evalAllKeywords},
}

// Match returns ranked product candidates. The caller is expected to have
// run the candidate extractor first so phone-shaped tokens never arrive
// here. Only an exact code match can reach 100: code collisions are rarer
// than name collisions.
func (m *ProductMatcher) Match(input MessageInput, products []model.Product) model.MatchResults {
	in := productInput{
		body:    Normalize(input.Body),
		subject: Normalize(input.Subject),
	}
	for _, t := range input.Candidates {
		if code := NormalizeCode(t.Text); code != "" {
			in.codes = append(in.codes, code)
		}
	}
	var results model.MatchResults
	for _, product := range products {
		best := 0.0
		var tag model.MatchStrategy
		var token string
		for _, s := range productStrategies {
			score, ok := s.eval(m, in, product)
			if ok && score > best {
				best = score
				tag = s.tag
				token = product.Code
			}
		}
		if best > 0 {
			results = append(results, model.MatchResult{
				EntityID: product.ID,
				Name:     product.Name,
				Score:    best,
				Strategy: tag,
				Token:    token,
			})
		}
	}

	results.Sort()
	return results
}

// evalExactCode fires when a candidate token equals the catalog code.
func (m *ProductMatcher) evalExactCode(in productInput, p model.Product) (float64, bool) {
	code := NormalizeCode(p.Code)
	if code == "" {
		return 0, false
	}
	for _, t := range in.codes {
		if t == code {
			return 100, true
		}
	}
	return 0, false
}

// evalCodePrefix fires when a token is a prefix of the catalog code or the
// other way around.
func (m *ProductMatcher) evalCodePrefix(in productInput, p model.Product) (float64, bool) {
	code := NormalizeCode(p.Code)
	if len(code) < minCodePrefixLen {
		return 0, false
	}
	for _, t := range in.codes {
		if len(t) < minCodePrefixLen || t == code {
			continue
		}
		if strings.HasPrefix(code, t) || strings.HasPrefix(t, code) {
			return 90, true
		}
	}
	return 0, false
}

// evalExactName fires when the product name appears verbatim in the text.
func (m *ProductMatcher) evalExactName(in productInput, p model.Product) (float64, bool) {
	name := Normalize(p.Name)
	if name == "" {
		return 0, false
	}
	if strings.Contains(in.body, name) || strings.Contains(in.subject, name) {
		return 90, true
	}
	return 0, false
}

// evalFuzzyName compares the product name against same-length word windows
// of the text; threshold similarity scores 70, perfect similarity 85.
func (m *ProductMatcher) evalFuzzyName(in productInput, p model.Product) (float64, bool) {
	name := Normalize(p.Name)
	if name == "" {
		return 0, false
	}

	wordCount := len(strings.Fields(name))
	fragments := ngrams(in.body, wordCount, bodyWordLimit)
	fragments = append(fragments, ngrams(in.subject, wordCount, bodyWordLimit)...)

	best := 0.0
	for _, f := range fragments {
		if sim := Similarity(f, name); sim > best {
			best = sim
		}
	}
	if best < m.cfg.FuzzyThreshold {
		return 0, false
	}
	return 70 + (best-m.cfg.FuzzyThreshold)/(1-m.cfg.FuzzyThreshold)*15, true
}

// evalAllKeywords fires only when every significant keyword of the product
// name is present in the text. More keywords mean a more specific match.
func (m *ProductMatcher) evalAllKeywords(in productInput, p model.Product) (float64, bool) {
	keywords := SignificantWords(p.Name, m.cfg.MinSignificantWordLen, m.cfg.Stopwords)
	if len(keywords) == 0 {
		return 0, false
	}
	text := in.body + " " + in.subject
	for _, w := range keywords {
		if !containsWord(text, w) {
			return 0, false
		}
	}
	score := 65 + float64(len(keywords)-1)*5
	if score > 75 {
		score = 75
	}
	return score, true
}
