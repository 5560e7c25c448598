package personality

import "strings"

// defaultKeywords is the built-in keyword set per gameplay context.
var defaultKeywords = map[string][]string{
	"combat":      {"attack", "initiative", "damage", "hit points", "armor class", "saving throw"},
	"social":      {"persuade", "negotiat", "conversation", "diplomacy", "charm"},
	"exploration": {"explore", "map", "terrain", "travel", "wilderness"},
	"puzzle":      {"puzzle", "riddle", "lever", "mechanism", "trap"},
	"downtime":    {"rest", "downtime", "camp", "shop", "tavern"},
}

// Snapshot is the session-state view the detector scans.
type Snapshot struct {
	CombatActive bool
	RecentText   string
	Tags         []string
}

// ContextDetector scans a Snapshot against a keyword set to determine
// which gameplay contexts are present.
type ContextDetector struct {
	keywords map[string][]string
}

// NewContextDetector constructs a detector using a copy of defaultKeywords.
func NewContextDetector() *ContextDetector {
	keywords := make(map[string][]string, len(defaultKeywords))
	for ctx, kws := range defaultKeywords {
		keywords[ctx] = kws
	}
	return &ContextDetector{keywords: keywords}
}

// WithKeywords overrides or extends the detector's keyword set for a context.
func (d *ContextDetector) WithKeywords(context string, keywords []string) *ContextDetector {
	d.keywords[context] = keywords
	return d
}

// Detect returns every context whose keywords (or explicit flags)
// match the snapshot. "combat" is also triggered directly by
// CombatActive regardless of text content.
func (d *ContextDetector) Detect(snap Snapshot) []string {
	lowText := strings.ToLower(snap.RecentText)
	tagSet := make(map[string]bool, len(snap.Tags))
	for _, t := range snap.Tags {
		tagSet[strings.ToLower(t)] = true
	}

	var matched []string
	seen := make(map[string]bool)
	add := func(ctx string) {
		if !seen[ctx] {
			seen[ctx] = true
			matched = append(matched, ctx)
		}
	}

	if snap.CombatActive {
		add("combat")
	}
	for ctx, keywords := range d.keywords {
		if seen[ctx] {
			continue
		}
		if tagSet[ctx] {
			add(ctx)
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(lowText, kw) {
				add(ctx)
				break
			}
		}
	}
	return matched
}

// ContextualBlender selects a blend rule for a detected context and
// resolves it to a BlendSpec, falling back to a default personality
// when nothing matches.
type ContextualBlender struct {
	detector           *ContextDetector
	rules              *RuleStore
	defaultPersonality string
}

// NewContextualBlender wires a detector, rule store, and fallback
// personality id into a single facade.
func NewContextualBlender(detector *ContextDetector, rules *RuleStore, defaultPersonalityID string) *ContextualBlender {
	return &ContextualBlender{detector: detector, rules: rules, defaultPersonality: defaultPersonalityID}
}

// Select runs detection over snap and returns the winning rule's blend
// spec. Among enabled rules matching any detected context, the highest
// priority wins; ties prefer the newest rule. With no
// match, the fallback is a degenerate single-component spec naming the
// default personality.
func (b *ContextualBlender) Select(snap Snapshot) Detection {
	contexts := b.detector.Detect(snap)
	contextSet := make(map[string]bool, len(contexts))
	for _, c := range contexts {
		contextSet[c] = true
	}

	var best *Rule
	for _, r := range b.rules.Enabled() {
		if !contextSet[r.Context] {
			continue
		}
		rule := r
		if best == nil {
			best = &rule
			continue
		}
		if rule.Priority > best.Priority {
			best = &rule
			continue
		}
		if rule.Priority == best.Priority && rule.CreatedAt.After(best.CreatedAt) {
			best = &rule
		}
	}

	if best == nil {
		return Detection{
			Context:       "",
			MatchedRuleID: "",
			Blend:         BlendSpec{Components: []Component{{PersonalityID: b.defaultPersonality, Weight: 1.0}}},
		}
	}

	return Detection{Context: best.Context, MatchedRuleID: best.ID, Blend: best.Blend}
}
