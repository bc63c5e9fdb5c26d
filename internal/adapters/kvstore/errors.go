package kvstore

import "errors"

// Sentinel kinds for key-value store errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
	ErrCorrupt    = errors.New("stored value is corrupt")
)
