package queryprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	dict := NewDictionary(
		[]string{"spell", "fireball", "powerful", "evocation", "heal", "cure"},
		DefaultTTRPGWhitelist(),
	)
	syn := DefaultTTRPGSynonyms()
	return New(dict, syn)
}

func TestExpandCorrectsTypo(t *testing.T) {
	p := newTestPipeline()
	report := p.Expand("firebll spell")

	assert.Equal(t, "fireball spell", report.CorrectedQuery)
	require.Len(t, report.SpellingSuggestions, 1)
	assert.Equal(t, "firebll", report.SpellingSuggestions[0].Original)
	assert.Equal(t, "fireball", report.SpellingSuggestions[0].Corrected)
}

func TestExpandLeavesWhitelistedTermsAlone(t *testing.T) {
	p := newTestPipeline()
	report := p.Expand("npc fireball")
	assert.Equal(t, "npc fireball", report.CorrectedQuery)
	assert.Empty(t, report.SpellingSuggestions)
}

func TestExpandIsPureAndDeterministic(t *testing.T) {
	p := newTestPipeline()
	a := p.Expand("heal spell")
	b := p.Expand("heal spell")
	assert.Equal(t, a, b)
}

func TestExpandProducesPhrasings(t *testing.T) {
	p := newTestPipeline()
	report := p.Expand("heal")
	assert.NotEmpty(t, report.ExpandedPhrasings)
	assert.Contains(t, report.ExpandedPhrasings, "heal")
}
