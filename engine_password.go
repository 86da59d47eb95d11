package idforge

import (
	"context"
	"fmt"
)

// SetCredential rehashes and overwrites the account's password, then
// revokes every session and refresh chain the account has. Already
// issued access tokens remain valid until their short expiry since
// VerifyAccess does no store round trip.
func (e *Engine) SetCredential(ctx context.Context, accountID, newSecret string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if len(newSecret) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	if _, err := e.accounts.GetAccountByID(ctx, accountID); err != nil {
		return mapProviderError(err)
	}

	if err := e.installCredential(ctx, accountID, newSecret); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventCredentialRotated, true, accountID, "", nil, nil)
	return nil
}

// ChangePassword verifies the current secret before installing the new
// one. The new secret must differ from the current one and survives the
// same cascading revocation as SetCredential.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldSecret, newSecret string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return mapProviderError(err)
	}

	ok, err := e.passwordHash.Verify(oldSecret, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if len(newSecret) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordChangeFailure)
		return ErrPasswordPolicy
	}

	same, err := e.passwordHash.Verify(newSecret, account.PasswordHash)
	if err == nil && same {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	if err := e.installCredential(ctx, accountID, newSecret); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, accountID, "", nil, nil)
	return nil
}

// installCredential hashes, persists, and cascades revocation. The new
// hash is written before revocation runs.
func (e *Engine) installCredential(ctx context.Context, accountID, newSecret string) error {
	newHash, err := e.passwordHash.Hash(newSecret)
	if err != nil {
		return ErrPasswordPolicy
	}
	if err := e.accounts.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.revokeEverything(ctx, accountID); err != nil {
		return err
	}
	e.metricInc(MetricCredentialRotated)
	return nil
}
