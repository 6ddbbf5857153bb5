package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to store
	// a shortened URL under a short code that is already held by a live record.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an attempt is made to retrieve
	// a URL using a short code that doesn't exist or has expired.
	ErrURLNotFound = errors.New("url not found")
)
