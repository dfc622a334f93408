package domain

import "errors"

// ErrNotFound is returned by repositories when nothing matches.
var ErrNotFound = errors.New("not found")
