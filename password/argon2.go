// Package password hashes and verifies account secrets with Argon2id.
//
// Hashes are serialized in PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) so parameters travel with
// the hash and can be strengthened over time without a migration.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLen     uint32 = 16
	minKeyLen      uint32 = 16
	minSecretBytes        = 10
)

// ErrWeakSecret is returned by Hash when the plaintext is shorter than
// the minimum accepted length.
var ErrWeakSecret = errors.New("secret must be at least 10 bytes")

// Params are the Argon2id cost parameters used for new hashes.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies secrets with a fixed parameter set.
// A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher. Parameters below the
// package floor are rejected rather than silently raised.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.MemoryKB < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case p.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case p.SaltLength < minSaltLen:
		return nil, errors.New("password: salt length must be >= 16")
	case p.KeyLength < minKeyLen:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives an Argon2id hash of secret under a fresh random salt and
// returns it in PHC format. Secrets are used byte-for-byte as provided;
// no Unicode normalization is applied.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", ErrWeakSecret
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches the PHC-encoded hash. The
// comparison of derived keys is constant-time. Verification uses the
// parameters embedded in the hash, not the Hasher's own.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(secret), parsed.salt, parsed.time, parsed.memoryKB, parsed.parallelism, parsed.keyLen)
	return subtle.ConstantTimeCompare(key, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker
// parameters than the Hasher's current ones, meaning the stored hash
// should be replaced the next time the plaintext is available.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	return h.params.MemoryKB > parsed.memoryKB ||
		h.params.Time > parsed.time ||
		h.params.Parallelism > parsed.parallelism ||
		h.params.KeyLength != parsed.keyLen, nil
}

type phcHash struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
	keyLen      uint32
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("password: malformed PHC string")
	}
	if parts[1] != phcAlgorithm {
		return nil, errors.New("password: unsupported algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errors.New("password: missing argon2 version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	var p phcHash
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("password: malformed parameter entry")
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("password: invalid memory parameter")
			}
			p.memoryKB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("password: invalid time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("password: invalid parallelism parameter")
			}
			p.parallelism = uint8(v)
		default:
			return nil, errors.New("password: unknown parameter")
		}
	}
	if p.memoryKB == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("password: missing parameters")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLen) {
		return nil, errors.New("password: invalid salt")
	}
	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, errors.New("password: invalid key")
	}

	p.salt = salt
	p.key = key
	p.keyLen = uint32(len(key))
	return &p, nil
}
