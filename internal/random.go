// Package internal holds identifier and secret generation shared by the
// root engine and its stores. Nothing here is part of the public API.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/oklog/ulid/v2"
)

// SecretSize is the byte length of refresh and reset secrets.
const SecretSize = 32

// backupCodeAlphabet avoids characters users confuse when reading codes
// off paper (no 0/O, 1/I/L).
const backupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewID returns a fresh ULID string, used for session and rotation
// chain identifiers. ULIDs sort by creation time, which keeps session
// listings and Redis key scans naturally ordered.
func NewID() string {
	return ulid.Make().String()
}

// ParseID validates a ULID string.
func ParseID(s string) (ulid.ULID, error) {
	return ulid.ParseStrict(s)
}

// NewSecret fills a fresh random secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret returns the SHA-256 of a secret as lowercase hex. Only
// hashes are ever persisted; the raw secret lives inside the opaque
// token handed to the client.
func HashSecret(secret [SecretSize]byte) string {
	sum := sha256.Sum256(secret[:])
	return hex.EncodeToString(sum[:])
}

// HashBytes is HashSecret for arbitrary-length input (client IP and
// user-agent fingerprints in the session registry).
func HashBytes(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// HashCode returns the SHA-256 of a backup code after normalization.
// Codes compare case-insensitively and ignore the display hyphen.
func HashCode(code string) [32]byte {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	return sha256.Sum256([]byte(normalized))
}

// NewBackupCode generates a single backup code of length characters
// from the restricted alphabet, hyphenated in the middle for display.
func NewBackupCode(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(length + 1)
	for i, c := range raw {
		if i == length/2 {
			b.WriteByte('-')
		}
		b.WriteByte(backupCodeAlphabet[int(c)%len(backupCodeAlphabet)])
	}
	return b.String(), nil
}
