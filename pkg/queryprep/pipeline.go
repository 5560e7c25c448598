package queryprep

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kofalt/go-memoize"
)

// DefaultCorrectionThreshold is the minimum score margin a correction must
// exceed the original token's score by before replacing it.
const DefaultCorrectionThreshold = 0.15

// DefaultClarificationRatio is the minimum ratio of a token's second to
// top expansion weight at or above which the pipeline treats them as
// "roughly equal" and raises a clarification.
const DefaultClarificationRatio = 0.7

// Pipeline runs the four-stage query preprocessing algorithm.
type Pipeline struct {
	dict                *Dictionary
	synonyms            *SynonymMap
	correctionThreshold float64
	clarificationRatio  float64
	memo                *memoize.Memoizer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCorrectionThreshold overrides DefaultCorrectionThreshold.
func WithCorrectionThreshold(t float64) Option {
	return func(p *Pipeline) { p.correctionThreshold = t }
}

// WithClarificationRatio overrides DefaultClarificationRatio.
func WithClarificationRatio(r float64) Option {
	return func(p *Pipeline) { p.clarificationRatio = r }
}

// New builds a Pipeline from a dictionary and synonym map. Repeated-token
// corrections and expansions are memoized (TTL-based) to avoid redundant
// edit-distance search on hot tokens across queries within a session.
func New(dict *Dictionary, synonyms *SynonymMap, opts ...Option) *Pipeline {
	p := &Pipeline{
		dict:                dict,
		synonyms:            synonyms,
		correctionThreshold: DefaultCorrectionThreshold,
		clarificationRatio:  DefaultClarificationRatio,
		memo:                memoize.NewMemoizer(10*time.Minute, 30*time.Minute),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Expand runs the full pipeline over raw and returns its ExpansionReport.
// Output is pure and deterministic given a stable dictionary/synonym map.
func (p *Pipeline) Expand(raw string) ExpansionReport {
	tokens := Tokenize(raw)
	words := Words(tokens)
	slog.Debug("queryprep: tokenized", "raw", raw, "tokens", len(words))

	corrected, suggestions := p.correct(words)
	slog.Debug("queryprep: spell-corrected", "suggestions", len(suggestions))

	phrasings := p.synonyms.Expand(corrected)
	slog.Debug("queryprep: synonym-expanded", "phrasings", len(phrasings))

	clarifications := p.detectClarifications(corrected)
	slog.Debug("queryprep: clarifications", "count", len(clarifications))

	return ExpansionReport{
		CorrectedQuery:      strings.Join(corrected, " "),
		ExpandedPhrasings:   phrasings,
		SpellingSuggestions: suggestions,
		Clarifications:      clarifications,
	}
}

// correct applies stage 2 (spell correction) to each word, replacing a
// token only when the best alternative's score exceeds the original's by
// at least correctionThreshold.
func (p *Pipeline) correct(words []string) ([]string, []SpellingSuggestion) {
	corrected := make([]string, len(words))
	var suggestions []SpellingSuggestion

	for i, w := range words {
		candidates := p.suggestMemoized(w)
		if len(candidates) == 0 {
			corrected[i] = w
			continue
		}

		originalScore := scoreForWord(candidates, w)
		best := candidates[0]

		if !strings.EqualFold(best.Word, w) && best.Score-originalScore >= p.correctionThreshold {
			corrected[i] = best.Word
			suggestions = append(suggestions, SpellingSuggestion{
				Original:  w,
				Corrected: best.Word,
				Score:     best.Score,
			})
		} else {
			corrected[i] = w
		}
	}
	return corrected, suggestions
}

func scoreForWord(candidates []Correction, word string) float64 {
	lower := strings.ToLower(word)
	for _, c := range candidates {
		if c.Word == lower {
			return c.Score
		}
	}
	return 0
}

func (p *Pipeline) suggestMemoized(word string) []Correction {
	key := "spell:" + strings.ToLower(word)
	result, err, _ := p.memo.Memoize(key, func() (interface{}, error) {
		return p.dict.Suggest(word), nil
	})
	if err != nil {
		return nil
	}
	corrections, ok := result.([]Correction)
	if !ok {
		return nil
	}
	return corrections
}

// detectClarifications flags tokens whose top two synonym-expansion
// weights are within clarificationRatio of each other.
func (p *Pipeline) detectClarifications(words []string) []Clarification {
	var out []Clarification
	for _, w := range words {
		sorted := p.synonyms.sortedByWeight(w)
		if len(sorted) < 2 {
			continue
		}
		top, second := sorted[0].Weight, sorted[1].Weight
		if top == 0 {
			continue
		}
		if second/top >= p.clarificationRatio {
			alts := make([]string, 0, len(sorted))
			for _, e := range sorted {
				alts = append(alts, e.Word)
			}
			out = append(out, Clarification{Token: w, Alternatives: alts})
		}
	}
	return out
}

// String implements fmt.Stringer for ExpansionReport, useful for logging.
func (r ExpansionReport) String() string {
	return fmt.Sprintf("queryprep.ExpansionReport{corrected=%q phrasings=%d suggestions=%d clarifications=%d}",
		r.CorrectedQuery, len(r.ExpandedPhrasings), len(r.SpellingSuggestions), len(r.Clarifications))
}
