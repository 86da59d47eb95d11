package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session does not exist or has
	// expired out of the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("session store redis unavailable")

	// ErrSessionCorrupt is returned when a stored session record cannot
	// be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
)
