// Package matching finds the user's own price-list entries that correspond
// to items of an imported template.
//
// A query resolves in three steps: exact SKU, exact normalized name, then a
// token-overlap score against every entry. The score rewards exact tokens
// over partial ones, rewards preserved word order and penalizes names of
// different length. All thresholds live in Weights.
package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

// Default tuning. The values are empirical.
const (
	ExactWeight         = 60.0
	PartialWeight       = 25.0
	InOrderExactBonus   = 0.5
	InOrderPartialBonus = 0.25
	MaxOrderBonus       = 10.0
	LengthPenaltyWeight = 10.0
	FuzzyFloor          = 70.0
	HighConfidence      = 80.0
	PromoteToExact      = 95.0
	MaxAlternatives     = 2
)

type Weights struct {
	Exact               float64
	Partial             float64
	InOrderExactBonus   float64
	InOrderPartialBonus float64
	MaxOrderBonus       float64
	LengthPenalty       float64
	FuzzyFloor          float64
	HighConfidence      float64
	PromoteToExact      float64
	MaxAlternatives     int
}

func DefaultWeights() Weights {
	return Weights{
		Exact:               ExactWeight,
		Partial:             PartialWeight,
		InOrderExactBonus:   InOrderExactBonus,
		InOrderPartialBonus: InOrderPartialBonus,
		MaxOrderBonus:       MaxOrderBonus,
		LengthPenalty:       LengthPenaltyWeight,
		FuzzyFloor:          FuzzyFloor,
		HighConfidence:      HighConfidence,
		PromoteToExact:      PromoteToExact,
		MaxAlternatives:     MaxAlternatives,
	}
}

// Score rates how well query names target on a 0..100 scale using the
// default weights.
func Score(query, target string) float64 {
	return DefaultWeights().score(tokens(Normalize(query)), tokens(Normalize(target)))
}

func (w Weights) score(q, t []string) float64 {
	if len(q) == 0 || len(t) == 0 {
		return 0
	}

	var exact, partial int
	bonus := 0.0
	last := -1
	for _, word := range q {
		if pos := indexExact(t, word, last); pos >= 0 {
			exact++
			if pos > last {
				bonus += w.InOrderExactBonus
			}
			last = pos
			continue
		}
		if pos := indexPartial(t, word); pos >= 0 {
			partial++
			if pos > last {
				bonus += w.InOrderPartialBonus
			}
			last = pos
		}
	}

	n := float64(len(q))
	shorter, longer := float64(min(len(q), len(t))), float64(max(len(q), len(t)))
	s := w.Exact*float64(exact)/n +
		w.Partial*float64(partial)/n +
		math.Min(bonus, w.MaxOrderBonus) -
		w.LengthPenalty*(1-shorter/longer)
	return math.Max(0, math.Min(100, s))
}

// indexExact prefers an occurrence after last so repeated words keep their
// order credit.
func indexExact(t []string, word string, last int) int {
	first := -1
	for i, tok := range t {
		if tok != word {
			continue
		}
		if i > last {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

func indexPartial(t []string, word string) int {
	for i, tok := range t {
		if partialMatch(word, tok) {
			return i
		}
	}
	return -1
}

type entry struct {
	item   models.PricebookEntry
	name   string
	tokens []string
}

// Matcher matches queries against one snapshot of the price list. It is
// safe for concurrent use.
type Matcher struct {
	entries []entry
	w       Weights
}

type Option func(*Matcher)

func WithWeights(w Weights) Option {
	return func(m *Matcher) { m.w = w }
}

func NewMatcher(items []models.PricebookEntry, opts ...Option) *Matcher {
	m := &Matcher{w: DefaultWeights(), entries: make([]entry, 0, len(items))}
	for _, o := range opts {
		o(m)
	}
	for _, it := range items {
		name := Normalize(it.Name)
		m.entries = append(m.entries, entry{item: it, name: name, tokens: tokens(name)})
	}
	return m
}

type candidate struct {
	entry *entry
	score float64
}

// Match resolves one query.
func (m *Matcher) Match(q models.MatchQuery) models.MatchResult {
	res := models.MatchResult{QueryItem: q, MatchType: models.MatchNone, Alternatives: []models.Alternative{}}

	if sku := strings.TrimSpace(q.SKU); sku != "" {
		for i := range m.entries {
			if strings.EqualFold(strings.TrimSpace(m.entries[i].item.SKU), sku) {
				return exactResult(res, m.entries[i].item)
			}
		}
	}

	name := Normalize(q.Name)
	if name != "" {
		for i := range m.entries {
			if m.entries[i].name == name {
				return exactResult(res, m.entries[i].item)
			}
		}
	}

	qt := tokens(name)
	var cands []candidate
	for i := range m.entries {
		s := m.w.score(qt, m.entries[i].tokens)
		if s >= m.w.FuzzyFloor {
			cands = append(cands, candidate{entry: &m.entries[i], score: s})
		}
	}
	if len(cands) == 0 {
		return res
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	best := cands[0]
	item := best.entry.item
	res.MatchedItem = &item
	res.Confidence = confidence(best.score)
	res.HighConfidence = best.score >= m.w.HighConfidence
	res.MatchType = models.MatchFuzzy
	if best.score >= m.w.PromoteToExact {
		res.MatchType = models.MatchExact
	}
	for _, c := range cands[1:min(len(cands), m.w.MaxAlternatives+1)] {
		res.Alternatives = append(res.Alternatives, models.Alternative{
			Item:       c.entry.item,
			Confidence: confidence(c.score),
		})
	}
	return res
}

// MatchAll resolves queries in order.
func (m *Matcher) MatchAll(qs []models.MatchQuery) []models.MatchResult {
	out := make([]models.MatchResult, len(qs))
	for i, q := range qs {
		out[i] = m.Match(q)
	}
	return out
}

func exactResult(res models.MatchResult, item models.PricebookEntry) models.MatchResult {
	res.MatchType = models.MatchExact
	res.Confidence = 100
	res.HighConfidence = true
	res.MatchedItem = &item
	return res
}

func confidence(score float64) int { return int(math.Round(score)) }

func reviewRank(r models.MatchResult) int {
	switch {
	case r.MatchType == models.MatchNone:
		return 0
	case r.MatchType == models.MatchFuzzy && !r.HighConfidence:
		return 1
	case r.MatchType == models.MatchFuzzy:
		return 2
	default:
		return 3
	}
}

// SortForReview orders results so those needing a decision come first:
// unmatched, low-confidence fuzzy, high-confidence fuzzy, exact. The sort
// is stable.
func SortForReview(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return reviewRank(results[i]) < reviewRank(results[j])
	})
}
