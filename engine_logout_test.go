package idforge

import (
	"context"
	"errors"
	"testing"
)

func TestLogoutDestroysSessionAndChain(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))
	login := mustLogin(t, engine)

	if err := engine.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	sessions, err := engine.Sessions(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions after logout, got %d", len(sessions))
	}
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
}

func TestLogoutUnknownToken(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))
	login := mustLogin(t, engine)

	if err := engine.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := engine.Logout(context.Background(), login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("second logout err = %v, want ErrRefreshInvalid", err)
	}
}

func TestLogoutAllAcrossDevices(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	first := mustLogin(t, engine)
	second := mustLogin(t, engine)
	third := mustLogin(t, engine)

	sessions, err := engine.Sessions(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("active sessions = %d, want 3", len(sessions))
	}

	if err := engine.LogoutAll(context.Background(), testAccountID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	sessions, err = engine.Sessions(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("Sessions after LogoutAll failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("sessions after LogoutAll = %d, want 0", len(sessions))
	}

	for i, token := range []string{first.RefreshToken, second.RefreshToken, third.RefreshToken} {
		if _, err := engine.Refresh(context.Background(), token); err == nil {
			t.Fatalf("refresh token %d survived LogoutAll", i)
		}
	}
}

func TestRevokeSingleSessionLeavesOthers(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	keep := mustLogin(t, engine)
	drop := mustLogin(t, engine)

	if err := engine.RevokeSession(context.Background(), drop.SessionID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	sessions, err := engine.Sessions(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != keep.SessionID {
		t.Fatalf("unexpected surviving sessions: %+v", sessions)
	}

	if _, err := engine.Refresh(context.Background(), drop.RefreshToken); err == nil {
		t.Fatal("expected revoked session's refresh token to fail")
	}
	if _, err := engine.Refresh(context.Background(), keep.RefreshToken); err != nil {
		t.Fatalf("surviving session's refresh failed: %v", err)
	}
}

func TestRevokeUnknownSession(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig(t))

	if err := engine.RevokeSession(context.Background(), "no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
