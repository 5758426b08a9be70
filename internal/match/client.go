package match

import (
	"strings"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/model"
)

// bodyWordLimit caps how many body words the fuzzy window scan considers.
const bodyWordLimit = 400

// MessageInput is the normalized view of one inbound message.
type MessageInput struct {
	SenderEmail string
	Subject     string
	Body        string
	// Candidates are the retained candidate tokens, if extraction ran.
	Candidates []model.CandidateToken
}

// ClientMatcher scores message text against the customer directory.
// It is stateless and safe for concurrent use.
type ClientMatcher struct {
	cfg config.MatchingConfig
}

// NewClientMatcher creates a client matcher with the given thresholds.
func NewClientMatcher(cfg config.MatchingConfig) *ClientMatcher {
	return &ClientMatcher{cfg: cfg}
}

// clientInput carries the pre-normalized message views shared by all
// strategies in one matching pass.
type clientInput struct {
	domain    string
	body      string
	subject   string
	fragments []string
}

// clientStrategy is one scoring heuristic. Strategies are evaluated in
// precedence order; a client keeps the best score it reached, tagged with
// the strategy that produced it.
type clientStrategy struct {
	tag  model.MatchStrategy
	eval func(m *ClientMatcher, in clientInput, c model.Client) (float64, bool)
}

var clientStrategies = []clientStrategy{
	{model.StrategyDomainAndName, (*ClientMatcher).evalDomainAndName},
	{model.StrategyDomain, (*ClientMatcher).evalDomain},
	{model.StrategyExactName, (*ClientMatcher).evalExactName},
	{model.StrategyFuzzyName, (*ClientMatcher).evalFuzzyName},
	{model.StrategyKeyword, (*ClientMatcher).evalKeyword},
}

// Match returns ranked client candidates for the message. An empty result
// means no client resolved. When two distinct clients tie at the same score
// and precedence the results are returned together with ErrAmbiguousMatch so
// a human can choose.
func (m *ClientMatcher) Match(input MessageInput, clients []model.Client) (model.MatchResults, error) {
	in := clientInput{
		domain:  senderDomain(input.SenderEmail),
		body:    Normalize(input.Body),
		subject: Normalize(input.Subject),
	}
	for _, t := range input.Candidates {
		in.fragments = append(in.fragments, Normalize(t.Text))
	}

	var results model.MatchResults
	for _, client := range clients {
		best := 0.0
		var tag model.MatchStrategy
		var token string
		for _, s := range clientStrategies {
			score, ok := s.eval(m, in, client)
			if ok && score > best {
				best = score
				tag = s.tag
				token = client.Name
			}
		}
		if best > 0 {
			results = append(results, model.MatchResult{
				EntityID: client.ID,
				Name:     client.Name,
				Score:    best,
				Strategy: tag,
				Token:    token,
			})
		}
	}

	results.Sort()
	if results.Ambiguous() {
		return results, common.ErrAmbiguousMatch
	}
	return results, nil
}

// evalDomainAndName fires when the sender domain is registered to the client
// and the name is corroborated by the body text. The full canonical name in
// the body scores 98, a single significant word 97.
func (m *ClientMatcher) evalDomainAndName(in clientInput, c model.Client) (float64, bool) {
	if in.domain == "" || !c.HasDomain(in.domain) {
		return 0, false
	}
	name := Normalize(c.Name)
	text := in.body + " " + in.subject
	if name != "" && strings.Contains(text, name) {
		return 98, true
	}
	for _, w := range SignificantWords(c.Name, m.cfg.MinSignificantWordLen, m.cfg.Stopwords) {
		if containsWord(text, w) {
			return 97, true
		}
	}
	return 0, false
}

// evalDomain fires on a registered sender domain alone.
func (m *ClientMatcher) evalDomain(in clientInput, c model.Client) (float64, bool) {
	if in.domain != "" && c.HasDomain(in.domain) {
		return 95, true
	}
	return 0, false
}

// evalExactName fires when the canonical name appears verbatim in the
// normalized text.
func (m *ClientMatcher) evalExactName(in clientInput, c model.Client) (float64, bool) {
	name := Normalize(c.Name)
	if name == "" {
		return 0, false
	}
	if strings.Contains(in.body, name) || strings.Contains(in.subject, name) {
		return 90, true
	}
	return 0, false
}

// evalFuzzyName compares the canonical name against candidate fragments and
// same-length word windows of the body. Similarity at the threshold scores
// 70, perfect similarity 88.
func (m *ClientMatcher) evalFuzzyName(in clientInput, c model.Client) (float64, bool) {
	name := Normalize(c.Name)
	if name == "" {
		return 0, false
	}

	fragments := in.fragments
	wordCount := len(strings.Fields(name))
	fragments = append(fragments, ngrams(in.body, wordCount, bodyWordLimit)...)
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
	scaled := 70 + (best-m.cfg.FuzzyThreshold)/(1-m.cfg.FuzzyThreshold)*18
	return scaled, true
}

// evalKeyword fires when a single significant word of the name appears in
// the text, scoring 65-75 with longer words scoring higher.
func (m *ClientMatcher) evalKeyword(in clientInput, c model.Client) (float64, bool) {
	text := in.body + " " + in.subject
	best := 0.0
	for _, w := range SignificantWords(c.Name, m.cfg.MinSignificantWordLen, m.cfg.Stopwords) {
		if !containsWord(text, w) {
			continue
		}
		score := 65 + float64(len(w)-m.cfg.MinSignificantWordLen)*2
		if score > 75 {
			score = 75
		}
		if score > best {
			best = score
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}
