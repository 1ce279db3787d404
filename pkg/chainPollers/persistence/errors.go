package persistence

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrStoreClosed = errors.New("store is closed")
)
