package idforge

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/idforge/idforge/password"
)

const (
	testIdentifier = "alice@example.com"
	testAccountID  = "acc-1"
	testPassword   = "correct-horse-battery"
)

func testConfig(t testing.TB) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = "idforge-test"
	cfg.TOTP.Issuer = "idforge-test"
	// Minimum argon2 parameters keep the suite fast.
	cfg.Password.MemoryKB = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

func seedAccount(t testing.TB, cfg Config, provider *fakeProvider, roles ...string) {
	t.Helper()

	hasher, err := password.NewHasher(cfg.Password.Params())
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	provider.AddAccount(Account{
		AccountID:    testAccountID,
		Identifier:   testIdentifier,
		PasswordHash: hash,
		Roles:        roles,
		Status:       AccountActive,
	})
}

func newTestEngine(t testing.TB, cfg Config) (*Engine, *fakeProvider, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	provider := newFakeProvider()
	seedAccount(t, cfg, provider)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRoles(map[string][]string{
			"user":  {"user:profile:read", "user:profile:write"},
			"admin": {"user:*", "admin:panel:read"},
		}).
		WithAccountProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider, mr
}

func mustLogin(t testing.TB, engine *Engine) *LoginResult {
	t.Helper()

	result, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.MFARequired {
		t.Fatal("unexpected MFA challenge")
	}
	return result
}

// codeForOffset generates the TOTP code for now shifted by the given
// number of periods.
func codeForOffset(t testing.TB, secretBase32 string, cfg TOTPConfig, offset int) string {
	t.Helper()

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	secret, err := enc.DecodeString(secretBase32)
	if err != nil {
		t.Fatalf("decode totp secret failed: %v", err)
	}

	counter := time.Now().Unix()/int64(cfg.Period) + int64(offset)
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotp generation failed: %v", err)
	}
	return code
}

func codeForNow(t testing.TB, secretBase32 string, cfg TOTPConfig) string {
	t.Helper()
	return codeForOffset(t, secretBase32, cfg, 0)
}
