package idforge

import (
	"context"
	"fmt"
)

// RegenerateBackupCodes replaces the account's backup codes with a
// fresh set, invalidating any unused remainder. A valid current TOTP
// code is required. The new plaintext codes are returned exactly once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, totpCode string) ([]string, error) {
	if e == nil || e.accounts == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	enrollment, err := e.requireEnabledEnrollment(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := e.verifyTOTPCode(ctx, accountID, enrollment, totpCode); err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{"stage": "backup_code_regeneration"}
		})
		return nil, err
	}

	codes, records, err := e.generateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := e.accounts.ReplaceBackupCodes(ctx, accountID, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, "", nil, nil)
	return codes, nil
}
