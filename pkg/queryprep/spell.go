package queryprep

import "strings"

// Dictionary is a closed vocabulary used for spell correction. Words is the
// known-good word list; Whitelist is the immutable set of TTRPG proper
// nouns and game terms that shadow generic corrections
// so a whitelisted token is never "corrected" away from itself.
type Dictionary struct {
	words     map[string]struct{}
	whitelist map[string]struct{}
}

// NewDictionary builds a Dictionary from a known-good word list and the
// immutable TTRPG whitelist.
func NewDictionary(words, whitelist []string) *Dictionary {
	d := &Dictionary{
		words:     make(map[string]struct{}, len(words)),
		whitelist: make(map[string]struct{}, len(whitelist)),
	}
	for _, w := range words {
		d.words[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range whitelist {
		lw := strings.ToLower(w)
		d.whitelist[lw] = struct{}{}
		d.words[lw] = struct{}{}
	}
	return d
}

// DefaultTTRPGWhitelist is the built-in, closed set of proper nouns and
// game terms that must never be "corrected" into something else.
func DefaultTTRPGWhitelist() []string {
	return []string{
		"d20", "d6", "d8", "d10", "d12", "d100",
		"npc", "npcs", "pc", "pcs", "gm", "dm",
		"hp", "ac", "xp", "dc",
		"fireball", "dragon", "paladin", "ranger", "rogue", "druid",
		"wizard", "sorcerer", "warlock", "cleric", "barbarian", "bard",
		"monk", "fighter", "beholder", "mindflayer", "displacer",
		"tarrasque", "githyanki", "drow", "githzerai",
	}
}

// Correction is one ranked alternative for a token, with its edit distance
// and a derived score (higher is a better match).
type Correction struct {
	Word     string
	Distance int
	Score    float64
}

// maxEditDistance returns the allowed edit distance for a token of the
// given rune length.
func maxEditDistance(token string) int {
	if len([]rune(token)) <= 4 {
		return 1
	}
	return 2
}

// Suggest returns ranked alternatives for token within its allowed edit
// distance, best first. A whitelisted token always returns itself alone.
func (d *Dictionary) Suggest(token string) []Correction {
	lower := strings.ToLower(token)
	if _, ok := d.whitelist[lower]; ok {
		return []Correction{{Word: token, Distance: 0, Score: 1.0}}
	}
	if _, ok := d.words[lower]; ok {
		return []Correction{{Word: token, Distance: 0, Score: 1.0}}
	}

	maxDist := maxEditDistance(token)
	var candidates []Correction
	for w := range d.words {
		dist := damerauLevenshtein(lower, w, maxDist)
		if dist >= 0 && dist <= maxDist {
			candidates = append(candidates, Correction{
				Word:     w,
				Distance: dist,
				Score:    scoreFor(dist),
			})
		}
	}
	sortCorrections(candidates)
	return candidates
}

func scoreFor(distance int) float64 {
	return 1.0 / float64(1+distance)
}

func sortCorrections(c []Correction) {
	// Insertion sort: candidate lists are small (bounded by a tiny edit
	// distance ball), so this is simpler and fast enough without pulling
	// in sort.Slice's interface overhead.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && less(c[j], c[j-1]); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func less(a, b Correction) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Word < b.Word
}

// damerauLevenshtein computes the Damerau-Levenshtein edit distance between
// a and b, or -1 when it exceeds maxDist. As a fast reject path, -1 is
// returned as soon as every entry in the current row exceeds maxDist.
func damerauLevenshtein(a, b string, maxDist int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if abs(la-lb) > maxDist {
		return -1
	}

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		rowMin := d[i][0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			v := min(del, min(ins, sub))
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				v = min(v, d[i-2][j-2]+1)
			}
			d[i][j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if rowMin > maxDist {
			return -1
		}
	}
	if d[la][lb] > maxDist {
		return -1
	}
	return d[la][lb]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
