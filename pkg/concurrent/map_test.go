package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapLoadStoreDelete(t *testing.T) {
	m := NewMap[string, int]()

	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	got, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	m.Store("a", 2)
	got, _ = m.Load("a")
	assert.Equal(t, 2, got)

	m.Delete("a")
	_, ok = m.Load("a")
	assert.False(t, ok)
}

func TestMapValuesSnapshot(t *testing.T) {
	m := NewMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)

	assert.ElementsMatch(t, []int{1, 2}, m.Values())
}

func TestMapRangeStopsWhenFReturnsFalse(t *testing.T) {
	m := NewMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)

	seen := 0
	m.Range(func(_ string, _ int) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestMapConcurrentAccess(t *testing.T) {
	m := NewMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Store(n, n)
			m.Load(n)
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Values(), 50)
}
