package personality

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// StableHash computes the blend cache key: a hash over spec's
// components sorted by personality id, with weights rounded to 6
// decimals. Two specs with the same components in
// any input order and weights equal to 6 decimal places hash identically.
func StableHash(spec BlendSpec) string {
	sorted := append([]Component(nil), spec.Components...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PersonalityID < sorted[j].PersonalityID })

	h := sha256.New()
	for _, c := range sorted {
		fmt.Fprintf(h, "%s=%.6f;", c.PersonalityID, c.Weight)
	}
	return hex.EncodeToString(h.Sum(nil))
}
