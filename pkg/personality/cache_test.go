package personality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlendCacheGetMissReturnsFalse(t *testing.T) {
	c := NewBlendCache(2)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestBlendCachePutThenGetRoundTrips(t *testing.T) {
	c := NewBlendCache(2)
	c.Put("k1", Profile{ID: "k1"})
	got, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "k1", got.ID)
}

func TestBlendCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewBlendCache(2)
	c.Put("k1", Profile{ID: "k1"})
	c.Put("k2", Profile{ID: "k2"})
	c.Put("k3", Profile{ID: "k3"}) // k1 is LRU, evicted

	_, ok := c.Get("k1")
	assert.False(t, ok)
	_, ok = c.Get("k2")
	assert.True(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestBlendCacheGetPromotesToMostRecentlyUsed(t *testing.T) {
	c := NewBlendCache(2)
	c.Put("k1", Profile{ID: "k1"})
	c.Put("k2", Profile{ID: "k2"})

	_, _ = c.Get("k1") // k1 now most-recently-used; k2 becomes LRU
	c.Put("k3", Profile{ID: "k3"})

	_, ok := c.Get("k2")
	assert.False(t, ok, "k2 should have been evicted")
	_, ok = c.Get("k1")
	assert.True(t, ok)
}

func TestBlendCacheDefaultsToCapacity100(t *testing.T) {
	c := NewBlendCache(0)
	for i := 0; i < 150; i++ {
		c.Put(fmt.Sprintf("k%d", i), Profile{ID: fmt.Sprintf("k%d", i)})
	}
	assert.Equal(t, DefaultBlendCacheCapacity, c.Len())
}

func TestBlendCachePutOverwritesWithoutGrowing(t *testing.T) {
	c := NewBlendCache(5)
	c.Put("k1", Profile{ID: "k1", Name: "first"})
	c.Put("k1", Profile{ID: "k1", Name: "second"})
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "second", got.Name)
}
