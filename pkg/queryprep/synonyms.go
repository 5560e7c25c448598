package queryprep

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// maxPhrasings caps the cartesian expansion of per-token synonym sets.
const maxPhrasings = 8

// Equivalent is one weighted synonym alternative for a token.
type Equivalent struct {
	Word   string
	Weight float64 // in [0,1]
}

// SynonymMap is a closed, precompiled TTRPG vocabulary map from a token to
// its weighted equivalents, backed by an ordered map so iteration (and
// thus cartesian expansion order) is deterministic across runs; a
// requirement a native Go map cannot satisfy.
type SynonymMap struct {
	entries *orderedmap.OrderedMap[string, []Equivalent]
}

// NewSynonymMap builds an empty, precompiled map ready for Add calls.
func NewSynonymMap() *SynonymMap {
	return &SynonymMap{entries: orderedmap.New[string, []Equivalent]()}
}

// Add registers token's equivalents, in the given order. Subsequent calls
// for the same token overwrite the previous entry.
func (m *SynonymMap) Add(token string, equivalents ...Equivalent) {
	m.entries.Set(strings.ToLower(token), equivalents)
}

// Lookup returns token's weighted equivalents plus the token itself at
// weight 1.0, in deterministic (insertion) order. Tokens with no
// registered equivalents return just themselves.
func (m *SynonymMap) Lookup(token string) []Equivalent {
	lower := strings.ToLower(token)
	self := Equivalent{Word: lower, Weight: 1.0}
	eqs, ok := m.entries.Get(lower)
	if !ok {
		return []Equivalent{self}
	}
	out := make([]Equivalent, 0, len(eqs)+1)
	out = append(out, self)
	for _, e := range eqs {
		if e.Word == lower {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DefaultTTRPGSynonyms returns a small, closed precompiled synonym map
// covering common TTRPG vocabulary.
func DefaultTTRPGSynonyms() *SynonymMap {
	m := NewSynonymMap()
	m.Add("spell", Equivalent{"spell", 1.0}, Equivalent{"cantrip", 0.6}, Equivalent{"incantation", 0.5})
	m.Add("monster", Equivalent{"monster", 1.0}, Equivalent{"creature", 0.8}, Equivalent{"beast", 0.6})
	m.Add("weapon", Equivalent{"weapon", 1.0}, Equivalent{"armament", 0.4})
	m.Add("armor", Equivalent{"armor", 1.0}, Equivalent{"armour", 0.9}, Equivalent{"plating", 0.3})
	m.Add("heal", Equivalent{"heal", 1.0}, Equivalent{"cure", 0.7}, Equivalent{"mend", 0.5})
	m.Add("attack", Equivalent{"attack", 1.0}, Equivalent{"strike", 0.6}, Equivalent{"assault", 0.5})
	m.Add("magic", Equivalent{"magic", 1.0}, Equivalent{"arcane", 0.6}, Equivalent{"sorcery", 0.5})
	m.Add("dungeon", Equivalent{"dungeon", 1.0}, Equivalent{"lair", 0.5}, Equivalent{"vault", 0.4})
	m.Add("treasure", Equivalent{"treasure", 1.0}, Equivalent{"loot", 0.7}, Equivalent{"hoard", 0.5})
	m.Add("npc", Equivalent{"npc", 1.0}, Equivalent{"character", 0.4})
	return m
}

// phrasing is one cartesian combination of per-token choices with its
// accumulated weight; weights multiply across tokens.
type phrasing struct {
	words  []string
	weight float64
}

// Expand produces up to maxPhrasings alternative phrasings for the given
// word tokens by taking the cartesian product of each token's synonym set,
// weights multiplying across tokens. The combination preserving the
// original words first always appears first.
func (m *SynonymMap) Expand(words []string) []string {
	if len(words) == 0 {
		return nil
	}

	choices := make([][]Equivalent, len(words))
	for i, w := range words {
		choices[i] = m.Lookup(w)
	}

	phrasings := []phrasing{{words: nil, weight: 1.0}}
	for _, opts := range choices {
		var next []phrasing
		for _, p := range phrasings {
			for _, opt := range opts {
				np := phrasing{
					words:  append(append([]string{}, p.words...), opt.Word),
					weight: p.weight * opt.Weight,
				}
				next = append(next, np)
			}
		}
		phrasings = next
		if len(phrasings) > maxPhrasings*maxPhrasings {
			// Prevent quadratic blowup mid-expansion; final cap below
			// still applies after sorting.
			phrasings = topByWeight(phrasings, maxPhrasings*maxPhrasings)
		}
	}

	phrasings = stableSortByWeightDesc(phrasings)
	if len(phrasings) > maxPhrasings {
		phrasings = phrasings[:maxPhrasings]
	}

	out := make([]string, len(phrasings))
	for i, p := range phrasings {
		out[i] = strings.Join(p.words, " ")
	}
	return out
}

func topByWeight(ps []phrasing, n int) []phrasing {
	sorted := stableSortByWeightDesc(ps)
	if len(sorted) > n {
		return sorted[:n]
	}
	return sorted
}

func stableSortByWeightDesc(ps []phrasing) []phrasing {
	out := append([]phrasing(nil), ps...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].weight > out[j-1].weight; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// sortedByWeight returns token's equivalents ordered by descending
// weight (insertion order breaks ties, keeping the result stable).
// Clarification detection reads the top two entries off this ordering.
func (m *SynonymMap) sortedByWeight(token string) []Equivalent {
	sorted := append([]Equivalent(nil), m.Lookup(token)...)
	for a := 1; a < len(sorted); a++ {
		for b := a; b > 0 && sorted[b].Weight > sorted[b-1].Weight; b-- {
			sorted[b], sorted[b-1] = sorted[b-1], sorted[b]
		}
	}
	return sorted
}
