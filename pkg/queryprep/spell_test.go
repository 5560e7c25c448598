package queryprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDictionary() *Dictionary {
	return NewDictionary(
		[]string{"spell", "fireball", "powerful", "evocation", "dragon", "treasure"},
		DefaultTTRPGWhitelist(),
	)
}

func TestDictionarySuggestKnownWordReturnsItself(t *testing.T) {
	d := testDictionary()
	got := d.Suggest("spell")
	require.Len(t, got, 1)
	assert.Equal(t, "spell", got[0].Word)
	assert.Equal(t, 0, got[0].Distance)
}

func TestDictionarySuggestTypoFindsCorrection(t *testing.T) {
	d := testDictionary()
	got := d.Suggest("firebll")
	require.NotEmpty(t, got)
	assert.Equal(t, "fireball", got[0].Word)
}

func TestDictionaryWhitelistShadowsCorrection(t *testing.T) {
	d := testDictionary()
	got := d.Suggest("npc")
	require.Len(t, got, 1)
	assert.Equal(t, "npc", got[0].Word)
}

func TestMaxEditDistanceByTokenLength(t *testing.T) {
	assert.Equal(t, 1, maxEditDistance("cat"))
	assert.Equal(t, 1, maxEditDistance("four"))
	assert.Equal(t, 2, maxEditDistance("fourteen"))
}

func TestDamerauLevenshteinTransposition(t *testing.T) {
	assert.Equal(t, 1, damerauLevenshtein("fierball", "fireball", 2))
}

func TestDamerauLevenshteinExceedsCapReturnsNegative(t *testing.T) {
	assert.Equal(t, -1, damerauLevenshtein("aaaa", "zzzzzz", 1))
}
