package hybridsearch

import (
	"cmp"
	"slices"
)

// DefaultRRFK is the RRF smoothing constant.
const DefaultRRFK = 60

// resultSet is one named leg's ranked hits, as fed to fusion.
type resultSet struct {
	name    string
	weight  float64
	results []SearchResult
}

// fusedEntry accumulates one document's RRF score and each leg's rank.
type fusedEntry struct {
	result    SearchResult
	score     float64
	bestRank  int // the smallest (best) 1-indexed rank across all legs
	keywordR  int
	semanticR int
}

// ReciprocalRankFusion fuses named result sets using
// RRF(d) = Σ weight_i / (k + rank_i(d)), k defaulting to DefaultRRFK.
// Final ordering: RRF score descending; ties broken by lower best rank,
// then by document id lexicographically.
func ReciprocalRankFusion(k int, sets map[string]resultSet) []HybridResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	entries := make(map[string]*fusedEntry)
	for name, set := range sets {
		for rank, r := range set.results {
			e, ok := entries[r.DocumentID]
			if !ok {
				e = &fusedEntry{result: r, bestRank: rank + 1}
				entries[r.DocumentID] = e
			}
			e.score += set.weight / float64(k+rank+1)
			if rank+1 < e.bestRank {
				e.bestRank = rank + 1
			}
			switch name {
			case "keyword":
				e.keywordR = rank + 1
			case "semantic":
				e.semanticR = rank + 1
			}
		}
	}

	out := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b *fusedEntry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.bestRank, b.bestRank); c != 0 {
			return c
		}
		return cmp.Compare(a.result.DocumentID, b.result.DocumentID)
	})

	results := make([]HybridResult, len(out))
	for i, e := range out {
		results[i] = HybridResult{
			SearchResult: e.result,
			RRFScore:     e.score,
			KeywordRank:  e.keywordR,
			SemanticRank: e.semanticR,
		}
	}
	return results
}

// WeightedFusion linearly combines each leg's already-normalized scores.
func WeightedFusion(kwWeight, semWeight float64, sets map[string]resultSet) []HybridResult {
	entries := make(map[string]*fusedEntry)
	for name, set := range sets {
		w := kwWeight
		if name == "semantic" {
			w = semWeight
		}
		for rank, r := range set.results {
			e, ok := entries[r.DocumentID]
			if !ok {
				e = &fusedEntry{result: r, bestRank: rank + 1}
				entries[r.DocumentID] = e
			}
			e.score += r.Score * w
			if rank+1 < e.bestRank {
				e.bestRank = rank + 1
			}
			switch name {
			case "keyword":
				e.keywordR = rank + 1
			case "semantic":
				e.semanticR = rank + 1
			}
		}
	}

	out := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *fusedEntry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.bestRank, b.bestRank); c != 0 {
			return c
		}
		return cmp.Compare(a.result.DocumentID, b.result.DocumentID)
	})

	results := make([]HybridResult, len(out))
	for i, e := range out {
		results[i] = HybridResult{SearchResult: e.result, RRFScore: e.score, KeywordRank: e.keywordR, SemanticRank: e.semanticR}
	}
	return results
}
