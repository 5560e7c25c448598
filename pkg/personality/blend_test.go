package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileA() Profile {
	return Profile{
		ID:   "a",
		Name: "Stern Marshal",
		Speech: SpeechPatterns{
			Formality:       8,
			VocabularyStyle: "formal",
			Pacing:          "measured",
			CommonPhrases:   []string{"At ease.", "Report."},
		},
		Traits: []Trait{{Name: "calm", Intensity: 6, Manifestation: "steady voice"}},
		Tendencies: BehavioralTendencies{
			Conflict: "de-escalates", GeneralAttitude: "reserved",
		},
	}
}

func profileB() Profile {
	return Profile{
		ID:   "b",
		Name: "Jolly Bard",
		Speech: SpeechPatterns{
			Formality:       2,
			VocabularyStyle: "casual",
			Pacing:          "brisk",
			CommonPhrases:   []string{"Heh!", "Report."},
		},
		Traits: []Trait{{Name: "calm", Intensity: 10, Manifestation: "unshakeable grin"}},
		Tendencies: BehavioralTendencies{
			Conflict: "jokes it away", GeneralAttitude: "warm",
		},
	}
}

func newStoreWithAB(t *testing.T) *ProfileStore {
	t.Helper()
	store := NewProfileStore()
	store.Put(profileA())
	store.Put(profileB())
	return store
}

// Scenario 7: A (formality=8, calm@6) + B (formality=2, calm@10) at
// 0.5/0.5 yields formality=5 and calm@8.
func TestBlendWorkedExample(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.5}}}

	blended, err := Blend(spec, store)
	require.NoError(t, err)

	assert.Equal(t, 5, blended.Speech.Formality)
	require.Len(t, blended.Traits, 1)
	assert.Equal(t, "calm", blended.Traits[0].Name)
	assert.Equal(t, 8, blended.Traits[0].Intensity)
}

// Blending idempotence: a single full-weight component reproduces that
// component's formality, trait set, and categoricals.
func TestBlendSingleComponentIsIdempotent(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 1.0}}}

	blended, err := Blend(spec, store)
	require.NoError(t, err)

	original := profileA()
	assert.Equal(t, original.Speech.Formality, blended.Speech.Formality)
	assert.Equal(t, original.Speech.VocabularyStyle, blended.Speech.VocabularyStyle)
	assert.Equal(t, original.Speech.Pacing, blended.Speech.Pacing)
	assert.Equal(t, original.Tendencies.GeneralAttitude, blended.Tendencies.GeneralAttitude)
	require.Len(t, blended.Traits, 1)
	assert.Equal(t, original.Traits[0].Intensity, blended.Traits[0].Intensity)
	assert.Equal(t, original.Traits[0].Manifestation, blended.Traits[0].Manifestation)
}

func TestBlendCategoricalTieBreaksOnLowerID(t *testing.T) {
	store := NewProfileStore()
	store.Put(Profile{ID: "x", Name: "X", Speech: SpeechPatterns{VocabularyStyle: "from-x"}})
	store.Put(Profile{ID: "y", Name: "Y", Speech: SpeechPatterns{VocabularyStyle: "from-y"}})

	spec := BlendSpec{Components: []Component{{PersonalityID: "y", Weight: 0.5}, {PersonalityID: "x", Weight: 0.5}}}
	blended, err := Blend(spec, store)
	require.NoError(t, err)
	assert.Equal(t, "from-x", blended.Speech.VocabularyStyle)
}

func TestBlendRejectsWeightsNotSummingToOne(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.3}}}

	_, err := Blend(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestBlendRejectsUnknownPersonality(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "nonexistent", Weight: 1.0}}}

	_, err := Blend(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestBlendToleratesSmallWeightError(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5005}, {PersonalityID: "b", Weight: 0.4998}}}

	_, err := Blend(spec, store)
	assert.NoError(t, err)
}

func TestBlendListFieldsUnionDeduplicated(t *testing.T) {
	store := newStoreWithAB(t)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.5}}}

	blended, err := Blend(spec, store)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"At ease.", "Report.", "Heh!"}, blended.Speech.CommonPhrases)
}

func TestStableHashIsOrderIndependent(t *testing.T) {
	spec1 := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.5}}}
	spec2 := BlendSpec{Components: []Component{{PersonalityID: "b", Weight: 0.5}, {PersonalityID: "a", Weight: 0.5}}}
	assert.Equal(t, StableHash(spec1), StableHash(spec2))
}

func TestStableHashRoundsWeightsToSixDecimals(t *testing.T) {
	spec1 := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.333333}}}
	spec2 := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.3333331}}}
	assert.Equal(t, StableHash(spec1), StableHash(spec2))
}
