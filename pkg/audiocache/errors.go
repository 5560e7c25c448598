package audiocache

import "errors"

// ErrNotFound is returned by Get/Remove for a key with no cached entry.
var ErrNotFound = errors.New("audiocache: entry not found")

// ErrEmptyKey guards against the zero-value key ever reaching storage.
var ErrEmptyKey = errors.New("audiocache: key cannot be empty")
