package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlenderCachesBlendResult(t *testing.T) {
	store := newStoreWithAB(t)
	blender := NewBlender(store, 10)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.5}}}

	first, err := blender.Blend(spec)
	require.NoError(t, err)

	cached, ok := blender.cache.Get(StableHash(spec))
	require.True(t, ok)
	assert.Equal(t, first.Speech.Formality, cached.Speech.Formality)
}

func TestBlenderInvalidatesOnPersonalityChange(t *testing.T) {
	store := newStoreWithAB(t)
	blender := NewBlender(store, 10)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 0.5}, {PersonalityID: "b", Weight: 0.5}}}

	_, err := blender.Blend(spec)
	require.NoError(t, err)

	key := StableHash(spec)
	_, ok := blender.cache.Get(key)
	require.True(t, ok)

	blender.InvalidateForPersonality("a")

	_, ok = blender.cache.Get(key)
	assert.False(t, ok)
}

func TestBlenderInvalidateUnrelatedPersonalityLeavesCacheIntact(t *testing.T) {
	store := newStoreWithAB(t)
	blender := NewBlender(store, 10)
	spec := BlendSpec{Components: []Component{{PersonalityID: "a", Weight: 1.0}}}

	_, err := blender.Blend(spec)
	require.NoError(t, err)

	blender.InvalidateForPersonality("b")

	_, ok := blender.cache.Get(StableHash(spec))
	assert.True(t, ok)
}
