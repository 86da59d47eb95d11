package internal

import (
	"encoding/base64"
	"errors"
)

const opaqueRawSize = 16 + SecretSize

// ErrMalformedToken is returned when an opaque token fails to decode.
var ErrMalformedToken = errors.New("malformed opaque token")

// EncodeOpaqueToken packs a 16-byte record identifier and its secret
// into the compact base64url form handed to clients. Refresh and
// password-reset tokens share this layout; the server stores only the
// identifier and the secret's hash.
func EncodeOpaqueToken(id [16]byte, secret [SecretSize]byte) string {
	var raw [opaqueRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeOpaqueToken reverses EncodeOpaqueToken. It rejects any input
// that is not exactly one identifier plus one secret.
func DecodeOpaqueToken(token string) ([16]byte, [SecretSize]byte, error) {
	var (
		id     [16]byte
		secret [SecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, ErrMalformedToken
	}
	if len(raw) != opaqueRawSize {
		return id, secret, ErrMalformedToken
	}

	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])
	return id, secret, nil
}
