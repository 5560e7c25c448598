package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Dragons and Treasure", "dragons-and-treasure"},
		{"punctuation", "Rules v2.1 (Beta)!", "rules-v2-1-beta"},
		{"already-lower", "rules", "rules"},
		{"leading/trailing-junk", "  !!Fireball!!  ", "fireball"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestSlugifyTruncatesOnUTF8Boundary(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "dragön-"
	}
	got := Slugify(long)
	assert.LessOrEqual(t, len(got), MaxBytes)
	assert.True(t, isUTF8Boundary(got, len(got)))
}

func TestDeriveUniqueStableAndDisambiguated(t *testing.T) {
	taken := map[string]bool{"rules": true}
	exists := func(s string) (bool, error) { return taken[s], nil }

	got, err := DeriveUnique("Rules", exists)
	require.NoError(t, err)
	assert.Equal(t, "rules-2", got)

	taken["rules-2"] = true
	got, err = DeriveUnique("Rules", exists)
	require.NoError(t, err)
	assert.Equal(t, "rules-3", got)
}

func TestDeriveUniqueFreeBaseStable(t *testing.T) {
	exists := func(s string) (bool, error) { return false, nil }
	got, err := DeriveUnique("Monster Manual", exists)
	require.NoError(t, err)
	assert.Equal(t, "monster-manual", got)
}
