package audiocache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	settings := &VoiceSettings{Stability: 0.5, Similarity: 0.8}
	k1 := DeriveKey("Hello, adventurer.", "elevenlabs", "voice-1", settings, "mp3")
	k2 := DeriveKey("Hello, adventurer.", "elevenlabs", "voice-1", settings, "mp3")
	assert.Equal(t, k1, k2)
	assert.Regexp(t, `^[0-9a-f]{64}\.mp3$`, k1)
}

func TestDeriveKeyDiffersOnAnyInput(t *testing.T) {
	base := DeriveKey("text", "elevenlabs", "voice-1", &VoiceSettings{Stability: 0.5}, "mp3")
	variants := []string{
		DeriveKey("other text", "elevenlabs", "voice-1", &VoiceSettings{Stability: 0.5}, "mp3"),
		DeriveKey("text", "openai", "voice-1", &VoiceSettings{Stability: 0.5}, "mp3"),
		DeriveKey("text", "elevenlabs", "voice-2", &VoiceSettings{Stability: 0.5}, "mp3"),
		DeriveKey("text", "elevenlabs", "voice-1", &VoiceSettings{Stability: 0.9}, "mp3"),
		DeriveKey("text", "elevenlabs", "voice-1", &VoiceSettings{Stability: 0.5}, "wav"),
	}
	for _, v := range variants {
		assert.NotEqual(t, base, v)
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := DeriveKey("hi", "openai", "v1", nil, "mp3")

	require.NoError(t, c.Put(ctx, key, []byte("fake-audio-bytes"), "mp3", nil))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-audio-bytes"), got)
}

func TestGetMissingKeyReturnsNotFoundAndCountsMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "does-not-exist.mp3")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheHitIncrementsHitsAndAccessCount(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := DeriveKey("line", "piper", "v1", nil, "wav")
	require.NoError(t, c.Put(ctx, key, []byte("abc"), "wav", nil))

	_, err := c.Get(ctx, key)
	require.NoError(t, err)
	_, err = c.Get(ctx, key)
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.EntryCount)

	e, err := c.store.get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.AccessCount)
}

func TestContainsDoesNotAffectStats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := DeriveKey("line", "piper", "v1", nil, "wav")
	require.NoError(t, c.Put(ctx, key, []byte("abc"), "wav", nil))

	ok, err := c.Contains(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Contains(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestRemoveDeletesEntryAndBlob(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := DeriveKey("line", "piper", "v1", nil, "wav")
	require.NoError(t, c.Put(ctx, key, []byte("abc"), "wav", nil))

	require.NoError(t, c.Remove(ctx, key))

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	err = c.Remove(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	for i, text := range []string{"a", "b", "c"} {
		key := DeriveKey(text, "openai", "v1", nil, "mp3")
		require.NoErrorf(t, c.Put(ctx, key, []byte{byte(i)}, "mp3", nil), "put %d", i)
	}

	require.NoError(t, c.Clear(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.EntryCount)
}

func TestClearByTagOnlyRemovesTaggedEntries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	keyA := DeriveKey("a", "openai", "voice-x", nil, "mp3")
	keyB := DeriveKey("b", "openai", "voice-y", nil, "mp3")
	require.NoError(t, c.Put(ctx, keyA, []byte("a"), "mp3", []string{"voice:voice-x"}))
	require.NoError(t, c.Put(ctx, keyB, []byte("b"), "mp3", []string{"voice:voice-y"}))

	n, err := c.ClearByTag(ctx, "voice:voice-x")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.Get(ctx, keyA)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(ctx, keyB)
	assert.NoError(t, err)
}

func TestPutOverwritesExistingKey(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := DeriveKey("x", "openai", "v1", nil, "mp3")

	require.NoError(t, c.Put(ctx, key, []byte("first"), "mp3", nil))
	require.NoError(t, c.Put(ctx, key, []byte("second"), "mp3", nil))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EntryCount)
}

func TestEvictionKeepsTotalSizeWithinMaxAndRemovesLRUFirst(t *testing.T) {
	c := newTestCache(t, WithMaxSizeBytes(10))
	ctx := context.Background()

	keyA := DeriveKey("a", "openai", "v1", nil, "mp3")
	keyB := DeriveKey("b", "openai", "v1", nil, "mp3")
	keyC := DeriveKey("c", "openai", "v1", nil, "mp3")

	require.NoError(t, c.Put(ctx, keyA, make([]byte, 5), "mp3", nil))
	require.NoError(t, c.Put(ctx, keyB, make([]byte, 5), "mp3", nil))

	// Touch A so B becomes the least-recently-used entry.
	_, err := c.Get(ctx, keyA)
	require.NoError(t, err)

	// Pushes total past the 10-byte ceiling; B (LRU) should be evicted.
	require.NoError(t, c.Put(ctx, keyC, make([]byte, 5), "mp3", nil))

	_, err = c.Get(ctx, keyB)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, keyA)
	assert.NoError(t, err)
	_, err = c.Get(ctx, keyC)
	assert.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.TotalBytes, int64(10))
}

func TestEmptyKeyRejected(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.Put(ctx, "", []byte("x"), "mp3", nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestHitRateComputation(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	assert.InDelta(t, 0.75, s.HitRate(), 0.0001)

	empty := Stats{}
	assert.Equal(t, float64(0), empty.HitRate())
}
