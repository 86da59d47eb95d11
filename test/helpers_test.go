//go:build integration
// +build integration

package test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/idforge/idforge"
	"github.com/idforge/idforge/password"
	"github.com/idforge/idforge/store/memory"
)

const (
	identifier = "alice@example.com"
	accountID  = "acc-1"
	passphrase = "correct-horse-battery"
)

func newIntegrationEngine(t *testing.T) (*idforge.Engine, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := idforge.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = "idforge-integration"
	cfg.TOTP.Issuer = "idforge-integration"
	cfg.Password.MemoryKB = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	hasher, err := password.NewHasher(cfg.Password.Params())
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash(passphrase)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	provider := memory.NewProvider()
	provider.AddAccount(idforge.Account{
		AccountID:    accountID,
		Identifier:   identifier,
		PasswordHash: hash,
		Roles:        []string{"user"},
		Status:       idforge.AccountActive,
	})

	engine, err := idforge.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRoles(map[string][]string{"user": {"user:profile:read"}}).
		WithAccountProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, rdb
}
