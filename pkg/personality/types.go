// Package personality implements named character-voice profiles, their
// weighted blending, and context-driven blend rule selection. Profile
// and rule stores are backed by pkg/concurrent.Map.
package personality

import "time"

// Source distinguishes built-in presets from user-authored profiles.
type Source string

const (
	SourcePreset Source = "preset"
	SourceCustom Source = "custom"
)

// Trait is a named personality trait with an intensity on a 1-10 scale
// and free-text manifestation.
type Trait struct {
	Name          string
	Intensity     int
	Manifestation string
}

// SpeechPatterns captures how a profile talks.
type SpeechPatterns struct {
	Formality       int
	CommonPhrases   []string
	VocabularyStyle string
	DialectNotes    *string
	Pacing          string
}

// BehavioralTendencies holds the five free-text response fields.
type BehavioralTendencies struct {
	Conflict        string
	Stranger        string
	Authority       string
	Help            string
	GeneralAttitude string
}

// Profile is a named, persistent character voice. Formality and trait intensities are clamped to 1-10;
// Name must be non-empty; Id is stable across updates.
type Profile struct {
	ID             string
	Name           string
	Source         Source
	Speech         SpeechPatterns
	Traits         []Trait
	KnowledgeAreas []string
	Tendencies     BehavioralTendencies
	ExamplePhrases []string
	Tags           []string
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Component is one weighted contributor to a blend spec. Weight must lie in [0, 1].
type Component struct {
	PersonalityID string
	Weight        float64
}

// BlendSpec is a set of components whose weights must sum to 1.0 ± ε.
type BlendSpec struct {
	Components []Component
}

// Rule maps a gameplay context to a weighted blend of personalities.
type Rule struct {
	ID            string
	Name          string
	Context       string
	Priority      int
	Enabled       bool
	BuiltIn       bool
	CampaignScope *string
	Blend         BlendSpec
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Detection is the context detector's output: which context matched,
// which rule won, and the blend spec to apply.
type Detection struct {
	Context       string
	MatchedRuleID string
	Blend         BlendSpec
}
