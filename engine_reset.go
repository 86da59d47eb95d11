package idforge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/idforge/idforge/internal"
)

// ForgotPassword mints a single-use, TTL-bounded reset token for the
// identifier's account and returns it for out-of-band delivery by the
// host (mail transport is not this package's concern). When the
// identifier matches no active account the return is an empty token and
// nil error, indistinguishable from success, so the endpoint cannot be
// used to enumerate accounts.
func (e *Engine) ForgotPassword(ctx context.Context, identifier string) (string, error) {
	if e == nil || e.accounts == nil || e.resets == nil {
		return "", ErrEngineNotReady
	}

	account, err := e.lookupByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", nil, func() map[string]string {
				return map[string]string{"known_account": "false"}
			})
			return "", nil
		}
		return "", err
	}
	if account.Status == AccountDisabled {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, account.AccountID, "", ErrAccountDisabled, nil)
		return "", nil
	}

	resetID := uuid.New()
	secret, err := internal.NewSecret()
	if err != nil {
		return "", err
	}

	record := &passwordResetRecord{
		AccountID:  account.AccountID,
		SecretHash: internal.HashSecret(secret),
		ExpiresAt:  time.Now().Add(e.config.PasswordReset.TTL).Unix(),
	}
	if err := e.resets.Save(ctx, resetID.String(), record, e.config.PasswordReset.TTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordResetRequested)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.AccountID, "", nil, nil)
	return internal.EncodeOpaqueToken(resetID, secret), nil
}

// ResetPassword consumes a reset token and installs the new secret.
// The token record is destroyed before the outcome is reported, so a
// token can never be tried twice. Success revokes every session and
// refresh chain the account has.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newSecret string) error {
	if e == nil || e.accounts == nil || e.resets == nil {
		return ErrEngineNotReady
	}

	if len(newSecret) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	idBytes, secret, err := internal.DecodeOpaqueToken(resetToken)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenExpiredOrUsed
	}
	resetID := uuid.UUID(idBytes).String()

	record, err := e.resets.Consume(ctx, resetID, internal.HashSecret(secret), e.config.PasswordReset.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, errResetNotFound),
			errors.Is(err, errResetSecretMismatch),
			errors.Is(err, errResetAttemptsExceeded):
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetTokenExpiredOrUsed, nil)
			return ErrResetTokenExpiredOrUsed
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if err := e.installCredential(ctx, record.AccountID, newSecret); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, record.AccountID, "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.AccountID, "", nil, nil)
	return nil
}
