package repository

import "errors"

// ErrConflict is returned by conditional creates when a row with the same
// unique key already exists.
var ErrConflict = errors.New("record already exists")

// ErrStale is returned by guarded updates when the row changed since it was read.
var ErrStale = errors.New("record modified concurrently")
