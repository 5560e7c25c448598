package personality

import "sync"

// Blender combines a ProfileStore with a BlendCache: it
// blends on cache miss and stores the result before returning. It also
// tracks, per personality id, which cache keys contributed to it, so an
// update can invalidate exactly the affected blends.
type Blender struct {
	store *ProfileStore
	cache *BlendCache

	mu          sync.Mutex
	keysByInput map[string]map[string]struct{} // personality id -> set of cache keys depending on it
}

// NewBlender constructs a Blender over store with a cache of the given
// capacity (0 for DefaultBlendCacheCapacity).
func NewBlender(store *ProfileStore, cacheCapacity int) *Blender {
	return &Blender{
		store:       store,
		cache:       NewBlendCache(cacheCapacity),
		keysByInput: make(map[string]map[string]struct{}),
	}
}

// Blend returns the blended profile for spec, serving from cache when
// available. Cache reads never observe partial writes: the cache's own
// mutex guards the read/write.
func (b *Blender) Blend(spec BlendSpec) (Profile, error) {
	key := StableHash(spec)
	if cached, ok := b.cache.Get(key); ok {
		return cached, nil
	}

	profile, err := Blend(spec, b.store)
	if err != nil {
		return Profile{}, err
	}

	b.cache.Put(key, profile)
	b.trackDependencies(key, spec)
	return profile, nil
}

func (b *Blender) trackDependencies(key string, spec BlendSpec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range spec.Components {
		set, ok := b.keysByInput[c.PersonalityID]
		if !ok {
			set = make(map[string]struct{})
			b.keysByInput[c.PersonalityID] = set
		}
		set[key] = struct{}{}
	}
}

// InvalidateForPersonality evicts every cached blend that read id,
// called after a profile update.
func (b *Blender) InvalidateForPersonality(id string) {
	b.mu.Lock()
	set, ok := b.keysByInput[id]
	delete(b.keysByInput, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	b.cache.invalidateKeys(keys)
}
