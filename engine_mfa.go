package idforge

import (
	"context"
	"fmt"

	"github.com/idforge/idforge/internal"
)

// BeginTOTPEnrollment provisions a TOTP secret and backup codes for an
// account. The secret and the plaintext backup codes are returned
// exactly once; only hashes are stored. Login does not demand MFA until
// the enrollment is confirmed with [Engine.ConfirmTOTPEnrollment].
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, accountID string) (*TOTPEnrollment, error) {
	if e == nil || e.accounts == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.TOTP.Enabled {
		return nil, ErrMFANotEnrolled
	}

	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, mapProviderError(err)
	}

	existing, err := e.accounts.GetMFAEnrollment(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing != nil && existing.Enabled {
		return nil, ErrMFAAlreadyEnrolled
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes, records, err := e.generateBackupCodes()
	if err != nil {
		return nil, err
	}

	enrollment := &MFAEnrollment{Secret: secret}
	if err := e.accounts.SaveMFAEnrollment(ctx, accountID, enrollment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.accounts.ReplaceBackupCodes(ctx, accountID, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, accountID, "", nil, nil)
	return &TOTPEnrollment{
		SecretBase32: secretBase32,
		URI:          e.totp.ProvisionURI(secretBase32, account.Identifier),
		BackupCodes:  codes,
	}, nil
}

// ConfirmTOTPEnrollment proves possession of the provisioned secret and
// enables MFA for the account. Only after this does login require a
// second factor.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, accountID, code string) error {
	if e == nil || e.accounts == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	enrollment, err := e.accounts.GetMFAEnrollment(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if enrollment == nil || len(enrollment.Secret) == 0 {
		return ErrMFANotEnrolled
	}
	if enrollment.Enabled {
		return ErrMFAAlreadyEnrolled
	}

	if err := e.verifyTOTPCode(ctx, accountID, enrollment, code); err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{"stage": "enrollment_confirm"}
		})
		return err
	}

	if err := e.accounts.EnableMFAEnrollment(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFAEnrolled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, accountID, "", nil, nil)
	return nil
}

// DisableTOTP turns MFA off for the account. A valid current TOTP code
// is required so a hijacked session cannot silently weaken the account.
func (e *Engine) DisableTOTP(ctx context.Context, accountID, code string) error {
	if e == nil || e.accounts == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	enrollment, err := e.requireEnabledEnrollment(ctx, accountID)
	if err != nil {
		return err
	}

	if err := e.verifyTOTPCode(ctx, accountID, enrollment, code); err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{"stage": "disable"}
		})
		return err
	}

	if err := e.accounts.DisableMFAEnrollment(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.accounts.ReplaceBackupCodes(ctx, accountID, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, accountID, "", nil, nil)
	return nil
}

func (e *Engine) requireEnabledEnrollment(ctx context.Context, accountID string) (*MFAEnrollment, error) {
	enrollment, err := e.accounts.GetMFAEnrollment(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if enrollment == nil || !enrollment.Enabled || len(enrollment.Secret) == 0 {
		return nil, ErrMFANotEnrolled
	}
	return enrollment, nil
}

func (e *Engine) generateBackupCodes() ([]string, []BackupCodeRecord, error) {
	count := e.config.TOTP.BackupCodeCount
	length := e.config.TOTP.BackupCodeLength

	codes := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		records = append(records, BackupCodeRecord{Hash: internal.HashCode(code)})
	}
	return codes, records, nil
}

func hashBackupCode(code string) [32]byte {
	return internal.HashCode(code)
}
