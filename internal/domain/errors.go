package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNoJobAvailable = errors.New("no job available")
)
