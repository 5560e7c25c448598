package ingest

import "github.com/tablecraft/ttrpg-core/pkg/slug"

// Slugify derives a filesystem- and index-name-safe identifier from a
// display name. Delegates to pkg/slug, which also backs
// pkg/library's rebuild_metadata scan.
func Slugify(name string) string { return slug.Slugify(name) }

// SlugExists reports whether a candidate slug is already taken, used by
// DeriveUniqueSlug to probe for a free disambiguation suffix.
type SlugExists = slug.Exists

// DeriveUniqueSlug slugifies name and, if taken, appends "-2", "-3", ...
// until a free slug is found.
func DeriveUniqueSlug(name string, exists SlugExists) (string, error) {
	return slug.DeriveUnique(name, exists)
}
