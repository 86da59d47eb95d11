package token

import "errors"

var (
	// ErrChainNotFound is returned when a chain record does not exist or
	// has expired out of the store.
	ErrChainNotFound = errors.New("refresh chain not found")

	// ErrReuseDetected is returned when a presented hash does not match
	// the chain's active hash, or the chain is already revoked. The chain
	// is revoked as a side effect so the current holder loses access too.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("token store redis unavailable")

	// ErrChainCorrupt is returned when a stored chain record cannot be
	// decoded.
	ErrChainCorrupt = errors.New("refresh chain record corrupt")
)
