package idforge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idforge/idforge/internal"
	"github.com/idforge/idforge/token"
)

// Refresh rotates a refresh token: the presented token is retired, a
// successor refresh token and a fresh access token are returned, and
// the session's last-seen timestamp is updated. Presenting a retired
// token revokes the whole chain and its session and returns
// [ErrTokenReuseDetected]. Under concurrent duplicate rotation exactly
// one caller wins.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.chainStore == nil {
		return nil, ErrEngineNotReady
	}

	chainID, providedHash, err := token.Decode(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	nextSecret, err := internal.NewSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	nextHash := internal.HashSecret(nextSecret)

	chain, err := e.chainStore.Rotate(ctx, chainID, providedHash, nextHash)
	if err != nil {
		return nil, e.mapRotateError(ctx, chain, err)
	}

	nextRefresh, err := token.Encode(chain.ChainID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	sess, err := e.sessionStore.Get(ctx, chain.SessionID)
	if err != nil {
		// The chain outlived its session; close the chain too.
		_ = e.chainStore.Revoke(ctx, chain.ChainID)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, chain.AccountID, chain.SessionID, ErrSessionNotFound, nil)
		return nil, ErrSessionNotFound
	}

	perms := e.catalog.Resolve(sess.Roles...).List()
	access, err := e.jwtManager.CreateAccess(chain.AccountID, chain.SessionID, sess.Roles, perms)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	if err := e.sessionStore.Touch(ctx, chain.SessionID, time.Now()); err != nil {
		e.metricInc(MetricRefreshFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, chain.AccountID, chain.SessionID, wrapped, nil)
		return nil, wrapped
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, chain.AccountID, chain.SessionID, nil, nil)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: nextRefresh,
		SessionID:    chain.SessionID,
	}, nil
}

// mapRotateError translates store-level rotation failures. Reuse
// detection cascades to the bound session here, so a stolen-then-
// replayed token cuts off the thief's live successor as well.
func (e *Engine) mapRotateError(ctx context.Context, chain *token.Chain, err error) error {
	switch {
	case errors.Is(err, token.ErrReuseDetected):
		accountID, sessionID := "", ""
		if chain != nil {
			accountID, sessionID = chain.AccountID, chain.SessionID
			if sessionID != "" {
				_ = e.sessionStore.Delete(ctx, sessionID)
			}
		}
		e.metricInc(MetricTokenReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, accountID, sessionID, ErrTokenReuseDetected, nil)
		return ErrTokenReuseDetected
	case errors.Is(err, token.ErrChainNotFound), errors.Is(err, token.ErrChainCorrupt):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, nil)
		return ErrRefreshInvalid
	default:
		e.metricInc(MetricRefreshFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", wrapped, nil)
		return wrapped
	}
}
