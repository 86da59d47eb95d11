package idforge

import (
	"context"
	"errors"
	"testing"
)

func TestForgotPasswordUnknownIdentifierSilent(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	token, err := engine.ForgotPassword(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword for unknown identifier must not error, got %v", err)
	}
	if token != "" {
		t.Fatal("expected empty token for unknown identifier")
	}
}

func TestForgotPasswordDisabledAccountSilent(t *testing.T) {
	engine, provider, _ := newTestEngine(t, testConfig(t))
	provider.SetStatus(testAccountID, AccountDisabled)

	token, err := engine.ForgotPassword(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("ForgotPassword for disabled account must not error, got %v", err)
	}
	if token != "" {
		t.Fatal("expected empty token for disabled account")
	}
}

func TestResetPasswordHappyPathRevokesSessions(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))
	login := mustLogin(t, engine)

	token, err := engine.ForgotPassword(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	const newPassword = "fresh-battery-staple"
	if err := engine.ResetPassword(context.Background(), token, newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Every pre-reset credential is dead.
	if _, err := engine.Login(context.Background(), testIdentifier, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected pre-reset refresh token to be revoked")
	}
	sessions, err := engine.Sessions(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected zero sessions after reset, got %d", len(sessions))
	}

	if _, err := engine.Login(context.Background(), testIdentifier, newPassword); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	token, err := engine.ForgotPassword(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if err := engine.ResetPassword(context.Background(), token, "fresh-battery-staple"); err != nil {
		t.Fatalf("first reset failed: %v", err)
	}
	if err := engine.ResetPassword(context.Background(), token, "another-battery-staple"); !errors.Is(err, ErrResetTokenExpiredOrUsed) {
		t.Fatalf("second reset err = %v, want ErrResetTokenExpiredOrUsed", err)
	}
}

func TestResetPasswordMalformedToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	err := engine.ResetPassword(context.Background(), "garbage", "fresh-battery-staple")
	if !errors.Is(err, ErrResetTokenExpiredOrUsed) {
		t.Fatalf("err = %v, want ErrResetTokenExpiredOrUsed", err)
	}
}

func TestResetPasswordPolicyEnforced(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	token, err := engine.ForgotPassword(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if err := engine.ResetPassword(context.Background(), token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}

	// A policy rejection must not consume the token.
	if err := engine.ResetPassword(context.Background(), token, "fresh-battery-staple"); err != nil {
		t.Fatalf("reset after policy rejection failed: %v", err)
	}
}

func TestResetAttemptBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.PasswordReset.MaxAttempts = 2
	engine, _, _ := newTestEngine(t, cfg)

	token, err := engine.ForgotPassword(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}

	// Forge tokens with the right reset ID but wrong secrets by
	// tampering with the tail of the real token.
	tampered := token[:len(token)-4] + "AAAA"
	if tampered == token {
		tampered = token[:len(token)-4] + "BBBB"
	}

	for i := 0; i < cfg.PasswordReset.MaxAttempts; i++ {
		if err := engine.ResetPassword(context.Background(), tampered, "fresh-battery-staple"); !errors.Is(err, ErrResetTokenExpiredOrUsed) {
			t.Fatalf("tampered attempt %d err = %v, want ErrResetTokenExpiredOrUsed", i, err)
		}
	}

	// The budget is exhausted; even the genuine token is dead now.
	if err := engine.ResetPassword(context.Background(), token, "fresh-battery-staple"); !errors.Is(err, ErrResetTokenExpiredOrUsed) {
		t.Fatalf("genuine token after budget err = %v, want ErrResetTokenExpiredOrUsed", err)
	}
}
