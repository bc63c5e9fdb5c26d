package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound        = errors.New("driver not ranked")
	ErrInvalidLimit    = errors.New("invalid ranking limit")
	ErrInvalidEarnings = errors.New("invalid earnings value")
)
