package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrForeignKey is returned when a write references a missing parent row.
var ErrForeignKey = errors.New("referenced record does not exist")
