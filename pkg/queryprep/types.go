// Package queryprep turns a raw user query into zero or more expanded
// phrasings plus UI-facing corrections and clarification prompts. The
// pipeline runs four stages in order (tokenize, spell-correct,
// synonym-expand, detect-clarifications), each allowed to consume or bypass
// the previous stage's output. Given a stable synonym map and dictionary,
// output is byte-identical across runs.
package queryprep

// Token is a single lexical unit produced by tokenization, preserving
// intra-token hyphens and apostrophes.
type Token struct {
	Text   string
	IsWord bool // false for standalone punctuation tokens
}

// SpellingSuggestion records a token-level correction applied because the
// best alternative's score exceeded the original by at least the
// configured threshold.
type SpellingSuggestion struct {
	Original  string
	Corrected string
	Score     float64
}

// Clarification is a UI-facing prompt raised when a token has two or more
// synonym expansions with roughly equal top weights.
type Clarification struct {
	Token        string
	Alternatives []string
}

// ExpansionReport is the pipeline's full output.
type ExpansionReport struct {
	CorrectedQuery      string
	ExpandedPhrasings   []string
	SpellingSuggestions []SpellingSuggestion
	Clarifications      []Clarification
}
