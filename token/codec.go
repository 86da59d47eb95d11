package token

import (
	"github.com/oklog/ulid/v2"

	"github.com/idforge/idforge/internal"
)

// Encode packs a chain ID and secret into the opaque string handed to
// the client.
func Encode(chainID string, secret [internal.SecretSize]byte) (string, error) {
	id, err := internal.ParseID(chainID)
	if err != nil {
		return "", err
	}
	return internal.EncodeOpaqueToken([16]byte(id), secret), nil
}

// Decode splits an opaque refresh token into its chain ID and the hex
// SHA-256 hash of the embedded secret. The raw secret is never returned;
// callers only ever need the hash.
func Decode(tok string) (chainID, secretHash string, err error) {
	id, secret, err := internal.DecodeOpaqueToken(tok)
	if err != nil {
		return "", "", err
	}
	chainID = ulid.ULID(id).String()
	if _, err := internal.ParseID(chainID); err != nil {
		return "", "", internal.ErrMalformedToken
	}
	return chainID, internal.HashBytes(secret[:]), nil
}
