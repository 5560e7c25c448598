package queryprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynonymMapLookupUnknownTokenReturnsSelf(t *testing.T) {
	m := NewSynonymMap()
	got := m.Lookup("griffon")
	require.Len(t, got, 1)
	assert.Equal(t, "griffon", got[0].Word)
	assert.Equal(t, 1.0, got[0].Weight)
}

func TestSynonymMapLookupKnownTokenIncludesEquivalents(t *testing.T) {
	m := DefaultTTRPGSynonyms()
	got := m.Lookup("spell")
	words := make([]string, len(got))
	for i, e := range got {
		words[i] = e.Word
	}
	assert.Contains(t, words, "spell")
	assert.Contains(t, words, "cantrip")
}

func TestSynonymMapExpandIsCartesianCappedAndDeterministic(t *testing.T) {
	m := DefaultTTRPGSynonyms()
	words := []string{"heal", "spell"}

	first := m.Expand(words)
	second := m.Expand(words)

	assert.LessOrEqual(t, len(first), maxPhrasings)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "heal spell")
}

func TestSynonymMapExpandEmptyInput(t *testing.T) {
	m := DefaultTTRPGSynonyms()
	assert.Empty(t, m.Expand(nil))
}

func TestSynonymMapIterationOrderIsStable(t *testing.T) {
	m := NewSynonymMap()
	m.Add("a", Equivalent{"a", 1.0}, Equivalent{"alpha", 0.5})
	m.Add("b", Equivalent{"b", 1.0}, Equivalent{"beta", 0.5})

	words := []string{"a", "b"}
	p1 := m.Expand(words)
	p2 := m.Expand(words)
	assert.Equal(t, p1, p2)
}
