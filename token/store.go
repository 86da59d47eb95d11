package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound = 0
	rotateStatusExpired  = 1
	rotateStatusReuse    = 2
	rotateStatusRotated  = 3
	rotateStatusCorrupt  = 4
)

// rotateChainScript is the compare-and-swap core of the rotation protocol.
// It runs atomically inside Redis so two concurrent refreshes with the same
// token can never both win: the first rotates, the second sees a retired
// hash and revokes the chain.
const rotateChainScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local ok, chain = pcall(cjson.decode, data)
if not ok then
  return {4}
end
local now = tonumber(ARGV[3])
if chain.expires_at <= now then
  redis.call("DEL", KEYS[1])
  return {1}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  ttl = (chain.expires_at - now) * 1000
end
if chain.status ~= "active" or chain.active_hash ~= ARGV[1] then
  chain.status = "revoked"
  local updated = cjson.encode(chain)
  redis.call("SET", KEYS[1], updated, "PX", ttl)
  return {2, updated}
end
local retired = chain.retired_hashes
if retired == nil then
  retired = {}
end
retired[#retired + 1] = chain.active_hash
local retain = tonumber(ARGV[4])
while #retired > retain do
  table.remove(retired, 1)
end
chain.retired_hashes = retired
chain.active_hash = ARGV[2]
chain.rotations = chain.rotations + 1
local updated = cjson.encode(chain)
redis.call("SET", KEYS[1], updated, "PX", ttl)
return {3, updated}
`

var rotateChainLua = redis.NewScript(rotateChainScript)

const revokeChainScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local ok, chain = pcall(cjson.decode, data)
if not ok then
  redis.call("DEL", KEYS[1])
  return 0
end
if chain.status == "revoked" then
  return 0
end
chain.status = "revoked"
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  redis.call("DEL", KEYS[1])
  return 0
end
redis.call("SET", KEYS[1], cjson.encode(chain), "PX", ttl)
return 1
`

var revokeChainLua = redis.NewScript(revokeChainScript)

// defaultRetainedHashes caps how many retired hashes a chain record keeps.
// Old hashes beyond the cap can no longer be distinguished from garbage,
// which only matters for audit detail, not for safety: an unknown hash
// revokes the chain either way.
const defaultRetainedHashes = 32

// Store persists rotation chains in Redis as JSON records keyed by chain
// ID, with a per-account set index for bulk revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	retain int
}

// NewStore creates a chain [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		retain: defaultRetainedHashes,
	}
}

func (s *Store) key(chainID string) string {
	return s.prefix + ":c:" + chainID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

// Save persists a new chain record with the given TTL and indexes it
// under the owning account.
func (s *Store) Save(ctx context.Context, chain *Chain, ttl time.Duration) error {
	data, err := json.Marshal(chain)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(chain.ChainID), data, ttl)
		pipe.SAdd(ctx, s.accountKey(chain.AccountID), chain.ChainID)
		// The index outlives its newest member at most; stale entries
		// are pruned on read.
		pipe.Expire(ctx, s.accountKey(chain.AccountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get retrieves a chain record by ID. Expired or missing chains return
// [ErrChainNotFound].
func (s *Store) Get(ctx context.Context, chainID string) (*Chain, error) {
	data, err := s.redis.Get(ctx, s.key(chainID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChainNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	chain, err := decodeChain(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= chain.ExpiresAt {
		return nil, ErrChainNotFound
	}
	return chain, nil
}

// Rotate atomically advances the chain to nextHash if providedHash matches
// the chain's active hash. On a mismatch, or when the chain is already
// revoked, the chain is revoked and the record is returned alongside
// [ErrReuseDetected] so the caller can cascade to the bound session.
func (s *Store) Rotate(ctx context.Context, chainID, providedHash, nextHash string) (*Chain, error) {
	result, err := rotateChainLua.Run(
		ctx,
		s.redis,
		[]string{s.key(chainID)},
		providedHash,
		nextHash,
		time.Now().Unix(),
		s.retain,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return nil, ErrChainNotFound
	case rotateStatusCorrupt:
		return nil, ErrChainCorrupt
	case rotateStatusReuse:
		chain, decErr := decodeScriptPayload(parts)
		if decErr != nil {
			return nil, decErr
		}
		return chain, ErrReuseDetected
	case rotateStatusRotated:
		return decodeScriptPayload(parts)
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, code)
	}
}

// Revoke marks a chain revoked in place, preserving its TTL so the record
// remains visible to reuse detection until natural expiry. Revoking a
// missing or already revoked chain is a no-op.
func (s *Store) Revoke(ctx context.Context, chainID string) error {
	if err := revokeChainLua.Run(ctx, s.redis, []string{s.key(chainID)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForAccount revokes every chain indexed under the account and
// clears the index. Returns the number of chains actually transitioned
// to revoked.
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	accountKey := s.accountKey(accountID)
	chainIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var revoked int
	for _, chainID := range chainIDs {
		n, runErr := revokeChainLua.Run(ctx, s.redis, []string{s.key(chainID)}).Int()
		if runErr != nil {
			return revoked, fmt.Errorf("%w: %v", ErrRedisUnavailable, runErr)
		}
		revoked += n
	}

	if err := s.redis.Del(ctx, accountKey).Err(); err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return revoked, nil
}

// ChainIDsForAccount returns the chain IDs indexed under an account,
// including revoked chains that have not yet expired.
func (s *Store) ChainIDsForAccount(ctx context.Context, accountID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

func decodeChain(data []byte) (*Chain, error) {
	var chain Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainCorrupt, err)
	}
	return &chain, nil
}

func decodeScriptPayload(parts []interface{}) (*Chain, error) {
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: missing chain payload", ErrRedisUnavailable)
	}
	var blob []byte
	switch v := parts[1].(type) {
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	default:
		return nil, fmt.Errorf("%w: invalid chain payload", ErrRedisUnavailable)
	}
	return decodeChain(blob)
}
