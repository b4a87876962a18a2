package stores

import "errors"

// ErrVersionConflict is returned by versioned updates that matched no row.
var ErrVersionConflict = errors.New("entity was modified concurrently")
