package service

import "errors"

// Sentinel errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrDriverNotFound = errors.New("driver not found")
)
