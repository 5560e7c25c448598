package personality

import (
	"fmt"
	"sort"
)

// weightTolerance is the ε in "components summing to 1.0 ± ε".
const weightTolerance = 1e-3

// Validate checks that a blend spec's weights sum to 1.0 ± ε and that
// every referenced personality exists in store.
func (s BlendSpec) Validate(store *ProfileStore) error {
	if len(s.Components) == 0 {
		return fmt.Errorf("%w: no components", ErrInvalidSpec)
	}
	total := 0.0
	for _, c := range s.Components {
		if _, err := store.Get(c.PersonalityID); err != nil {
			return fmt.Errorf("%w: unknown personality %q", ErrInvalidSpec, c.PersonalityID)
		}
		total += c.Weight
	}
	if diff := total - 1.0; diff < -weightTolerance || diff > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0 ± %.0e", ErrInvalidSpec, total, weightTolerance)
	}
	return nil
}

// contributor pairs a resolved profile with its blend weight.
type contributor struct {
	profile Profile
	weight  float64
}

// Blend combines the profiles named by spec's components into a single
// derived Profile. The result is never persisted; callers typically
// hold it only in the blend cache.
func Blend(spec BlendSpec, store *ProfileStore) (Profile, error) {
	if err := spec.Validate(store); err != nil {
		return Profile{}, err
	}

	contributors := make([]contributor, 0, len(spec.Components))
	for _, c := range spec.Components {
		p, err := store.Get(c.PersonalityID)
		if err != nil {
			return Profile{}, err
		}
		contributors = append(contributors, contributor{profile: p, weight: c.Weight})
	}
	// Sort by personality id for deterministic tie-breaking on the
	// categorical/dominant-component rules below.
	sort.Slice(contributors, func(i, j int) bool {
		return contributors[i].profile.ID < contributors[j].profile.ID
	})

	out := Profile{ID: blendedID(spec), Name: blendedName(contributors)}

	out.Speech.Formality = clampInt(round(weightedMean(contributors, func(p Profile) float64 {
		return float64(p.Speech.Formality)
	})), 1, 10)
	out.Speech.VocabularyStyle = dominantString(contributors, func(p Profile) string { return p.Speech.VocabularyStyle })
	out.Speech.Pacing = dominantString(contributors, func(p Profile) string { return p.Speech.Pacing })
	out.Speech.DialectNotes = blendOptional(contributors, func(p Profile) *string { return p.Speech.DialectNotes })
	out.Speech.CommonPhrases = unionProportional(contributors, func(p Profile) []string { return p.Speech.CommonPhrases }, 0)

	out.Traits = blendTraits(contributors)
	out.KnowledgeAreas = unionProportional(contributors, func(p Profile) []string { return p.KnowledgeAreas }, 0)
	out.ExamplePhrases = unionProportional(contributors, func(p Profile) []string { return p.ExamplePhrases }, 0)
	out.Tags = unionProportional(contributors, func(p Profile) []string { return p.Tags }, 0)

	out.Tendencies.Conflict = dominantString(contributors, func(p Profile) string { return p.Tendencies.Conflict })
	out.Tendencies.Stranger = dominantString(contributors, func(p Profile) string { return p.Tendencies.Stranger })
	out.Tendencies.Authority = dominantString(contributors, func(p Profile) string { return p.Tendencies.Authority })
	out.Tendencies.Help = dominantString(contributors, func(p Profile) string { return p.Tendencies.Help })
	out.Tendencies.GeneralAttitude = dominantString(contributors, func(p Profile) string { return p.Tendencies.GeneralAttitude })

	return out, nil
}

func blendedID(spec BlendSpec) string {
	return "blend:" + StableHash(spec)
}

func blendedName(contributors []contributor) string {
	if len(contributors) == 1 {
		return contributors[0].profile.Name
	}
	name := "Blend("
	for i, c := range contributors {
		if i > 0 {
			name += "+"
		}
		name += c.profile.Name
	}
	return name + ")"
}

func weightedMean(contributors []contributor, field func(Profile) float64) float64 {
	var sum, weightSum float64
	for _, c := range contributors {
		sum += field(c.profile) * c.weight
		weightSum += c.weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// dominantString takes the value from the highest-weight contributor;
// ties prefer the lexicographically smaller personality id. Contributors
// is already sorted by id ascending, so the first max-weight entry
// encountered is the correct tie-break winner.
func dominantString(contributors []contributor, field func(Profile) string) string {
	bestWeight := -1.0
	best := ""
	for _, c := range contributors {
		if c.weight > bestWeight {
			bestWeight = c.weight
			best = field(c.profile)
		}
	}
	return best
}

// blendOptional applies the dominant-wins rule for optional fields; a nil
// dominant value counts as the empty string, so the result is nil only if
// every contributor's value was nil.
func blendOptional(contributors []contributor, field func(Profile) *string) *string {
	var dominant *string
	bestWeight := -1.0
	allNil := true
	for _, c := range contributors {
		v := field(c.profile)
		if v != nil {
			allNil = false
		}
		if c.weight > bestWeight {
			bestWeight = c.weight
			dominant = v
		}
	}
	if allNil {
		return nil
	}
	if dominant == nil {
		empty := ""
		return &empty
	}
	return dominant
}

// unionProportional deduplicates list fields across contributors,
// sampling proportionally to weight when cap > 0. cap == 0 means no cap.
func unionProportional(contributors []contributor, field func(Profile) []string, cap int) []string {
	seen := make(map[string]bool)
	var union []string
	for _, c := range contributors {
		for _, v := range field(c.profile) {
			if !seen[v] {
				seen[v] = true
				union = append(union, v)
			}
		}
	}
	if cap <= 0 || len(union) <= cap {
		return union
	}

	// Proportional sampling: allocate slots to each contributor by
	// weight share, preferring earlier (lower-id) contributors on
	// rounding ties, then fill the result in stable union order.
	perContributorQuota := make(map[string]int)
	remaining := cap
	for i, c := range contributors {
		share := int(float64(cap)*c.weight + 0.5)
		if i == len(contributors)-1 {
			share = remaining
		}
		if share > remaining {
			share = remaining
		}
		perContributorQuota[c.profile.ID] = share
		remaining -= share
	}

	taken := make(map[string]bool)
	var out []string
	for _, c := range contributors {
		quota := perContributorQuota[c.profile.ID]
		n := 0
		for _, v := range field(c.profile) {
			if n >= quota {
				break
			}
			if taken[v] {
				continue
			}
			taken[v] = true
			out = append(out, v)
			n++
		}
	}
	return out
}

// blendTraits unions traits by name; on collision, intensities blend by
// weighted mean and manifestation comes from the dominant (highest
// weight) contributor.
func blendTraits(contributors []contributor) []Trait {
	type acc struct {
		weightedSum float64
		weightTotal float64
		dominantW   float64
		manifest    string
	}
	accs := make(map[string]*acc)
	var order []string

	for _, c := range contributors {
		for _, t := range c.profile.Traits {
			a, ok := accs[t.Name]
			if !ok {
				a = &acc{}
				accs[t.Name] = a
				order = append(order, t.Name)
			}
			a.weightedSum += float64(t.Intensity) * c.weight
			a.weightTotal += c.weight
			if c.weight > a.dominantW {
				a.dominantW = c.weight
				a.manifest = t.Manifestation
			}
		}
	}

	out := make([]Trait, 0, len(order))
	for _, name := range order {
		a := accs[name]
		intensity := 0
		if a.weightTotal > 0 {
			intensity = clampInt(round(a.weightedSum/a.weightTotal), 1, 10)
		}
		out = append(out, Trait{Name: name, Intensity: intensity, Manifestation: a.manifest})
	}
	return out
}
