// Package token manages opaque refresh tokens and their rotation chains.
//
// A rotation chain is the server-side record backing one logical refresh
// token across its rotations. The client-held token encodes the chain ID
// plus a random secret; only the SHA-256 hash of the secret is stored.
// Presenting the current hash rotates the chain to a fresh secret.
// Presenting a retired hash proves the token leaked and revokes the whole
// chain, including the currently valid successor.
package token

// Chain status values. A chain is active until it is explicitly revoked
// or its record expires out of the store.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// Chain is the stored rotation chain record. ActiveHash is the hex SHA-256
// of the secret the client currently holds; RetiredHashes are hashes of
// secrets consumed by earlier rotations, kept so a replay of an old token
// can be distinguished from random garbage.
type Chain struct {
	ChainID       string   `json:"chain_id"`
	AccountID     string   `json:"account_id"`
	SessionID     string   `json:"session_id"`
	Status        string   `json:"status"`
	ActiveHash    string   `json:"active_hash"`
	RetiredHashes []string `json:"retired_hashes,omitempty"`
	Rotations     int64    `json:"rotations"`
	IssuedAt      int64    `json:"issued_at"`
	ExpiresAt     int64    `json:"expires_at"`
}
