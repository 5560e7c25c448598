// Package audiocache implements the content-addressed on-disk audio cache
// that deduplicates TTS synthesis work: deterministic key
// derivation, put/get/eviction, and hit/miss statistics. Cache entry
// metadata is persisted in SQLite; audio bytes live on disk at
// <data_dir>/audio_cache/<key>.
package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// VoiceSettings mirrors ttsqueue.VoiceSettings without importing that
// package, keeping audiocache a leaf dependency.
type VoiceSettings struct {
	Stability    float64
	Similarity   float64
	Style        float64
	SpeakerBoost bool
}

// DeriveKey computes the deterministic content-address key over
// (text, provider, voiceID, voiceSettings, format): hexdigest + format
// extension. Two calls with the same inputs
// always produce the same key; voice settings are serialized in a stable
// field order so struct field reordering elsewhere never changes the hash.
func DeriveKey(text, provider, voiceID string, settings *VoiceSettings, format string) string {
	h := sha256.New()
	fmt.Fprintf(h, "text=%s\x00provider=%s\x00voice_id=%s\x00format=%s\x00", text, provider, voiceID, format)
	if settings != nil {
		fmt.Fprintf(h, "stability=%.6f\x00similarity=%.6f\x00style=%.6f\x00speaker_boost=%t\x00",
			settings.Stability, settings.Similarity, settings.Style, settings.SpeakerBoost)
	}
	return hex.EncodeToString(h.Sum(nil)) + "." + format
}

// sortedTags returns tags sorted for deterministic serialization, used
// when tags participate in any hash-sensitive path (they currently do
// not participate in DeriveKey, but stable ordering matters for
// clear_by_tag scans and is kept here to avoid duplicating sort logic).
func sortedTags(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}
