package idforge

import (
	"context"
	"errors"
	"fmt"

	"github.com/idforge/idforge/session"
	"github.com/idforge/idforge/token"
)

// Logout revokes the refresh chain behind the presented token and
// deletes its session. Revocation is guaranteed before success is
// reported: a store failure propagates as an error and must be retried
// by the caller. Logging out an already-dead token returns
// [ErrRefreshInvalid].
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.chainStore == nil {
		return ErrEngineNotReady
	}

	chainID, _, err := token.Decode(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}

	chain, err := e.chainStore.Get(ctx, chainID)
	if err != nil {
		if errors.Is(err, token.ErrChainNotFound) {
			return ErrRefreshInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.chainStore.Revoke(ctx, chainID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.sessionStore.Delete(ctx, chain.SessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogoutSession, true, chain.AccountID, chain.SessionID, nil, nil)
	return nil
}

// LogoutAll revokes every refresh chain and deletes every session the
// account has, across all devices.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if e == nil || e.chainStore == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrAccountNotFound
	}

	if err := e.revokeEverything(ctx, accountID); err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, nil)
	return nil
}

// Sessions lists the account's live sessions for a device overview.
func (e *Engine) Sessions(ctx context.Context, accountID string) ([]*session.Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	sessions, err := e.sessionStore.List(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sessions, nil
}

// RevokeSession revokes one session by ID, cascading to its refresh
// chain so the device cannot silently re-authenticate.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if sess.ChainID != "" {
		if err := e.chainStore.Revoke(ctx, sess.ChainID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, sess.AccountID, sessionID, nil, nil)
	return nil
}

// revokeEverything is the cascading revocation shared by LogoutAll,
// SetCredential, and ResetPassword.
func (e *Engine) revokeEverything(ctx context.Context, accountID string) error {
	if _, err := e.chainStore.RevokeAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := e.sessionStore.DeleteAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
