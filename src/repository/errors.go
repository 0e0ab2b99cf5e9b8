package repository

import "errors"

// ErrStaleVersion is returned by conditional updates when the row changed
// since it was read.
var ErrStaleVersion = errors.New("row was modified concurrently")
