package personality

import "errors"

// ErrNotFound is returned when a profile or rule id is unknown.
var ErrNotFound = errors.New("personality: not found")

// ErrInvalidSpec is returned when a blend spec's weights don't sum to
// 1.0 ± 1e-3, or a component references an unknown personality.
var ErrInvalidSpec = errors.New("personality: invalid blend spec")
