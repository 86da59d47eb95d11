package idforge

import (
	"context"
	"errors"
	"testing"
)

func TestBackupCodeCompletesMFAOnce(t *testing.T) {
	cfg := testConfig(t)
	engine, _, _ := newTestEngine(t, cfg)
	setup := enrollTOTP(t, engine, cfg)
	backup := setup.BackupCodes[0]

	first, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	completed, err := engine.CompleteMFA(context.Background(), first.ChallengeID, backup)
	if err != nil {
		t.Fatalf("CompleteMFA with backup code failed: %v", err)
	}
	if completed.AccessToken == "" {
		t.Fatal("expected tokens from backup code login")
	}

	// The same code must not work twice.
	second, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if _, err := engine.CompleteMFA(context.Background(), second.ChallengeID, backup); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("reused backup code err = %v, want ErrInvalidMFACode", err)
	}
}

func TestRegenerateBackupCodesInvalidatesOldSet(t *testing.T) {
	cfg := testConfig(t)
	engine, provider, _ := newTestEngine(t, cfg)
	setup := enrollTOTP(t, engine, cfg)
	oldCode := setup.BackupCodes[0]

	totpCode := codeForOffset(t, setup.SecretBase32, cfg.TOTP, 1)
	fresh, err := engine.RegenerateBackupCodes(context.Background(), testAccountID, totpCode)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes failed: %v", err)
	}
	if len(fresh) != cfg.TOTP.BackupCodeCount {
		t.Fatalf("fresh codes = %d, want %d", len(fresh), cfg.TOTP.BackupCodeCount)
	}
	if n := provider.UnusedBackupCodes(testAccountID); n != cfg.TOTP.BackupCodeCount {
		t.Fatalf("stored codes = %d, want %d", n, cfg.TOTP.BackupCodeCount)
	}

	login, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.CompleteMFA(context.Background(), login.ChallengeID, oldCode); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("old backup code err = %v, want ErrInvalidMFACode", err)
	}

	login2, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if _, err := engine.CompleteMFA(context.Background(), login2.ChallengeID, fresh[0]); err != nil {
		t.Fatalf("fresh backup code rejected: %v", err)
	}
}

func TestRegenerateBackupCodesRequiresTOTP(t *testing.T) {
	cfg := testConfig(t)
	engine, _, _ := newTestEngine(t, cfg)
	enrollTOTP(t, engine, cfg)

	if _, err := engine.RegenerateBackupCodes(context.Background(), testAccountID, "000000"); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("err = %v, want ErrInvalidMFACode", err)
	}
}

func TestRegenerateBackupCodesWithoutEnrollment(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	if _, err := engine.RegenerateBackupCodes(context.Background(), testAccountID, "123456"); !errors.Is(err, ErrMFANotEnrolled) {
		t.Fatalf("err = %v, want ErrMFANotEnrolled", err)
	}
}
