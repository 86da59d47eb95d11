// Package session tracks the server-side device sessions behind issued
// tokens. Each session is a JSON record in Redis bound to one refresh
// rotation chain, with a per-account set index so all of an account's
// devices can be listed or revoked together.
package session

// Session is a single authenticated device context. IPHash and UAHash
// carry SHA-256 digests of the client IP and user agent rather than the
// raw values, so the registry never stores direct network identifiers.
type Session struct {
	SessionID  string   `json:"session_id"`
	AccountID  string   `json:"account_id"`
	ChainID    string   `json:"chain_id"`
	// roles is omitted when empty: lua-cjson under Touch would re-encode
	// an empty array as {}, corrupting the record for role-less accounts.
	Roles      []string `json:"roles,omitempty"`
	Device     string   `json:"device,omitempty"`
	IPHash     string   `json:"ip_hash,omitempty"`
	UAHash     string   `json:"ua_hash,omitempty"`
	CreatedAt  int64    `json:"created_at"`
	LastSeenAt int64    `json:"last_seen_at"`
	ExpiresAt  int64    `json:"expires_at"`
}
