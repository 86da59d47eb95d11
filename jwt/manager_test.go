package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newHS256Manager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "idforge-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := newHS256Manager(t, time.Minute)

	token, err := m.CreateAccess("acct-1", "sess-1", []string{"viewer"}, []string{"reports:read:own"})
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.AccountID != "acct-1" || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "viewer" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if len(claims.Perms) != 1 || claims.Perms[0] != "reports:read:own" {
		t.Fatalf("unexpected permission snapshot: %v", claims.Perms)
	}
}

func TestParseAccessExpired(t *testing.T) {
	m := newHS256Manager(t, time.Millisecond)

	token, err := m.CreateAccess("acct-1", "sess-1", nil, nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseAccessWrongKey(t *testing.T) {
	m := newHS256Manager(t, time.Minute)
	token, err := m.CreateAccess("acct-1", "sess-1", nil, nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "idforge-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if _, err := other.ParseAccess(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong key, got %v", err)
	}
	if _, err := m.ParseAccess("not.a.token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestEd25519KeyRotationViaVerifyKeys(t *testing.T) {
	oldPub, oldPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	newPub, newPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	oldSigner, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    oldPriv,
		PublicKey:     oldPub,
		KeyID:         "2025-01",
		VerifyKeys:    map[string][]byte{"2025-01": oldPub},
	})
	if err != nil {
		t.Fatalf("NewManager(old) failed: %v", err)
	}

	oldToken, err := oldSigner.CreateAccess("acct-1", "sess-1", nil, nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	// Rotated manager signs with the new key but still verifies tokens
	// minted under the old kid.
	rotated, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    newPriv,
		KeyID:         "2025-02",
		VerifyKeys: map[string][]byte{
			"2025-01": oldPub,
			"2025-02": newPub,
		},
	})
	if err != nil {
		t.Fatalf("NewManager(rotated) failed: %v", err)
	}

	if _, err := rotated.ParseAccess(oldToken); err != nil {
		t.Fatalf("rotated manager rejected old-kid token: %v", err)
	}

	newToken, err := rotated.CreateAccess("acct-1", "sess-2", nil, nil)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := rotated.ParseAccess(newToken); err != nil {
		t.Fatalf("rotated manager rejected its own token: %v", err)
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, PrivateKey: []byte("k")},                          // no TTL
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},                           // no key
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},                         // no verify key
		{AccessTTL: time.Minute, SigningMethod: "rsa", PrivateKey: []byte("k")},        // unknown method
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: 5 * time.Minute}, // leeway cap
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config validation error", i)
		}
	}
}
