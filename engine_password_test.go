package idforge

import (
	"context"
	"errors"
	"testing"
)

func TestChangePasswordRotatesCredentialAndRevokes(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))
	login := mustLogin(t, engine)

	const newPassword = "fresh-battery-staple"
	if err := engine.ChangePassword(context.Background(), testAccountID, testPassword, newPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), testIdentifier, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(context.Background(), testIdentifier, newPassword); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	// Credential rotation invalidates every outstanding session.
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected pre-change refresh token to be revoked")
	}
}

func TestChangePasswordWrongOld(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	err := engine.ChangePassword(context.Background(), testAccountID, "wrong-password-123", "fresh-battery-staple")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	err := engine.ChangePassword(context.Background(), testAccountID, testPassword, testPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("err = %v, want ErrPasswordReuse", err)
	}
}

func TestChangePasswordPolicy(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	err := engine.ChangePassword(context.Background(), testAccountID, testPassword, "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}
}

func TestSetCredentialAdministrative(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))
	login := mustLogin(t, engine)

	const newPassword = "admin-chosen-secret"
	if err := engine.SetCredential(context.Background(), testAccountID, newPassword); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), testIdentifier, newPassword); err != nil {
		t.Fatalf("login with set credential failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected sessions to be revoked by SetCredential")
	}
}

func TestSetCredentialUnknownAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	err := engine.SetCredential(context.Background(), "no-such-account", "fresh-battery-staple")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}
