package idforge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idforge/idforge/internal"
	"github.com/idforge/idforge/internal/audit"
	"github.com/idforge/idforge/jwt"
	"github.com/idforge/idforge/password"
	"github.com/idforge/idforge/permission"
	"github.com/idforge/idforge/session"
	"github.com/idforge/idforge/token"
)

// Engine is the authentication core. It owns no transport: hosts call
// it from their own HTTP or RPC layer. All methods are safe for
// concurrent use.
type Engine struct {
	config       Config
	catalog      *permission.Catalog
	sessionStore *session.Store
	chainStore   *token.Store
	challenges   *challengeStore
	resets       *resetStore
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	totp         *totpManager
	jwtManager   *jwt.Manager
	accounts     AccountProvider
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all metric values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyAccess validates an access token's signature and lifetime
// without any store round trip and returns the identity it carries.
// Expired and otherwise-invalid tokens are distinguishable via
// [ErrTokenExpired] and [ErrTokenInvalidSignature].
func (e *Engine) VerifyAccess(tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalidSignature
	}

	return &AuthResult{
		AccountID:   claims.AccountID,
		SessionID:   claims.SessionID,
		Roles:       claims.Roles,
		Permissions: permission.NewSet(claims.Perms),
	}, nil
}

// VerifyAccessStrict is VerifyAccess plus a session store round trip:
// the token is rejected with [ErrSessionNotFound] when its session has
// been revoked or expired, trading a Redis call for immediate
// revocation visibility.
func (e *Engine) VerifyAccessStrict(ctx context.Context, tokenStr string) (*AuthResult, error) {
	result, err := e.VerifyAccess(tokenStr)
	if err != nil {
		return nil, err
	}
	if _, err := e.sessionStore.Get(ctx, result.SessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

// HasPermission reports whether the verified identity holds the
// required permission, honoring the global and suffix wildcards.
func (e *Engine) HasPermission(result *AuthResult, required string) bool {
	if result == nil {
		return false
	}
	return result.Permissions.Has(required)
}

// RequirePermission is HasPermission returning [ErrPermissionDenied]
// for use in guard chains.
func (e *Engine) RequirePermission(result *AuthResult, required string) error {
	if !e.HasPermission(result, required) {
		return ErrPermissionDenied
	}
	return nil
}

// ResolvePermissions returns the union of permissions granted by the
// given roles. Unknown roles contribute nothing.
func (e *Engine) ResolvePermissions(roles ...string) permission.Set {
	if e == nil || e.catalog == nil {
		return permission.Set{}
	}
	return e.catalog.Resolve(roles...)
}

// issueTokens mints the access token, refresh chain, and session for a
// fully authenticated account. Everything is persisted before anything
// is returned.
func (e *Engine) issueTokens(ctx context.Context, account *Account) (*LoginResult, error) {
	now := time.Now()
	sessionID := internal.NewID()
	chainID := internal.NewID()

	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	perms := e.catalog.Resolve(account.Roles...).List()
	access, err := e.jwtManager.CreateAccess(account.AccountID, sessionID, account.Roles, perms)
	if err != nil {
		return nil, err
	}
	refresh, err := token.Encode(chainID, secret)
	if err != nil {
		return nil, err
	}

	chain := &token.Chain{
		ChainID:    chainID,
		AccountID:  account.AccountID,
		SessionID:  sessionID,
		Status:     token.StatusActive,
		ActiveHash: internal.HashSecret(secret),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(e.config.JWT.RefreshTTL).Unix(),
	}
	if err := e.chainStore.Save(ctx, chain, e.config.JWT.RefreshTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess := &session.Session{
		SessionID:  sessionID,
		AccountID:  account.AccountID,
		ChainID:    chainID,
		Roles:      account.Roles,
		Device:     deviceNameFromContext(ctx),
		IPHash:     hashIdentity(clientIPFromContext(ctx)),
		UAHash:     hashIdentity(userAgentFromContext(ctx)),
		CreatedAt:  now.Unix(),
		LastSeenAt: now.Unix(),
		ExpiresAt:  now.Add(e.config.Session.TTL).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.Session.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
	}, nil
}

func hashIdentity(value string) string {
	if value == "" {
		return ""
	}
	return internal.HashBytes([]byte(value))
}

func accountStatusError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	case AccountLocked:
		return ErrAccountLocked
	case AccountDisabled:
		return ErrAccountDisabled
	default:
		return ErrAccountDisabled
	}
}
