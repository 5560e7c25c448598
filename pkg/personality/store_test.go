package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStorePutThenGetRoundTrips(t *testing.T) {
	store := NewProfileStore()
	store.Put(Profile{ID: "p1", Name: "Test"})

	got, err := store.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Test", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestProfileStoreGetUnknownReturnsNotFound(t *testing.T) {
	store := NewProfileStore()
	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileStoreClampsFormalityAndTraitIntensity(t *testing.T) {
	store := NewProfileStore()
	store.Put(Profile{
		ID:     "p1",
		Speech: SpeechPatterns{Formality: 99},
		Traits: []Trait{{Name: "rage", Intensity: -5}},
	})

	got, err := store.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Speech.Formality)
	assert.Equal(t, 1, got.Traits[0].Intensity)
}

func TestProfileStorePreservesCreatedAtAcrossUpdates(t *testing.T) {
	store := NewProfileStore()
	first := store.Put(Profile{ID: "p1", Name: "v1"})
	second := store.Put(Profile{ID: "p1", Name: "v2"})

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "v2", second.Name)
}

func TestProfileStoreListReturnsAll(t *testing.T) {
	store := NewProfileStore()
	store.Put(Profile{ID: "p1"})
	store.Put(Profile{ID: "p2"})
	assert.Len(t, store.List(), 2)
}

func TestRuleStoreEnabledFiltersDisabled(t *testing.T) {
	store := NewRuleStore()
	store.Put(Rule{ID: "r1", Enabled: true})
	store.Put(Rule{ID: "r2", Enabled: false})

	enabled := store.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "r1", enabled[0].ID)
}
