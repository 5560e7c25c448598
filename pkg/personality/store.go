package personality

import (
	"time"

	"github.com/tablecraft/ttrpg-core/pkg/concurrent"
)

// ProfileStore holds persistent personality profiles, shared by
// reference and guarded by pkg/concurrent.Map.
type ProfileStore struct {
	profiles *concurrent.Map[string, Profile]
}

// NewProfileStore constructs an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: concurrent.NewMap[string, Profile]()}
}

// Put inserts or replaces a profile, stamping UpdatedAt (and CreatedAt
// on first insert).
func (s *ProfileStore) Put(p Profile) Profile {
	now := time.Now()
	if existing, ok := s.profiles.Load(p.ID); ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	clampProfile(&p)
	s.profiles.Store(p.ID, p)
	return p
}

// Get returns a profile by id, or ErrNotFound.
func (s *ProfileStore) Get(id string) (Profile, error) {
	p, ok := s.profiles.Load(id)
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// List returns every stored profile in no particular order.
func (s *ProfileStore) List() []Profile {
	return s.profiles.Values()
}

// Delete removes a profile by id.
func (s *ProfileStore) Delete(id string) {
	s.profiles.Delete(id)
}

func clampProfile(p *Profile) {
	p.Speech.Formality = clampInt(p.Speech.Formality, 1, 10)
	for i := range p.Traits {
		p.Traits[i].Intensity = clampInt(p.Traits[i].Intensity, 1, 10)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RuleStore holds blend rules keyed by id,
// guarded the same way as ProfileStore.
type RuleStore struct {
	rules *concurrent.Map[string, Rule]
}

// NewRuleStore constructs an empty store.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: concurrent.NewMap[string, Rule]()}
}

// Put inserts or replaces a rule.
func (s *RuleStore) Put(r Rule) Rule {
	now := time.Now()
	if existing, ok := s.rules.Load(r.ID); ok {
		r.CreatedAt = existing.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.rules.Store(r.ID, r)
	return r
}

// Get returns a rule by id, or ErrNotFound.
func (s *RuleStore) Get(id string) (Rule, error) {
	r, ok := s.rules.Load(id)
	if !ok {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

// Delete removes a rule by id.
func (s *RuleStore) Delete(id string) {
	s.rules.Delete(id)
}

// Enabled returns every rule with Enabled set, in no particular order.
func (s *RuleStore) Enabled() []Rule {
	var out []Rule
	s.rules.Range(func(_ string, r Rule) bool {
		if r.Enabled {
			out = append(out, r)
		}
		return true
	})
	return out
}
