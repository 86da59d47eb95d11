package idforge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Login verifies the credential pair. When the account has a confirmed
// MFA enrollment the result carries MFARequired and a challenge ID
// instead of tokens; complete the flow with [Engine.CompleteMFA].
// Unknown identifiers and wrong passwords both return
// [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.lookupByIdentifier(ctx, identifier)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, nil)
		return nil, err
	}

	if statusErr := accountStatusError(account.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", statusErr, nil)
		return nil, statusErr
	}

	ok, err := e.passwordHash.Verify(secret, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	e.maybeUpgradeHash(ctx, account, secret)

	if e.config.TOTP.Enabled {
		enrollment, err := e.accounts.GetMFAEnrollment(ctx, account.AccountID)
		if err != nil {
			e.metricInc(MetricLoginFailure)
			wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", wrapped, nil)
			return nil, wrapped
		}
		if enrollment != nil && enrollment.Enabled {
			return e.beginMFAChallenge(ctx, account)
		}
	}

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, result.SessionID, nil, nil)
	return result, nil
}

// CompleteMFA finishes a login blocked on a second factor. code may be
// a TOTP code or an unused backup code; every failure is the single
// [ErrInvalidMFACode] so callers cannot probe which factor failed.
func (e *Engine) CompleteMFA(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	if e == nil || e.challenges == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if challengeID == "" {
		return nil, ErrMFAChallengeExpired
	}

	record, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, "", "", mapped, nil)
		return nil, mapped
	}

	account, err := e.accounts.GetAccountByID(ctx, record.AccountID)
	if err != nil {
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.metricInc(MetricMFAFailure)
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventMFAFailure, false, record.AccountID, "", mapped, nil)
		return nil, mapped
	}
	if statusErr := accountStatusError(account.Status); statusErr != nil {
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", statusErr, nil)
		return nil, statusErr
	}

	enrollment, err := e.accounts.GetMFAEnrollment(ctx, account.AccountID)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", wrapped, nil)
		return nil, wrapped
	}
	if enrollment == nil || !enrollment.Enabled || len(enrollment.Secret) == 0 {
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", ErrMFANotEnrolled, nil)
		return nil, ErrMFANotEnrolled
	}

	if verr := e.verifyChallengeCode(ctx, account, enrollment, code); verr != nil {
		if errors.Is(verr, ErrInvalidMFACode) {
			return nil, e.failChallengeAttempt(ctx, challengeID, account.AccountID)
		}
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", verr, nil)
		return nil, verr
	}

	deleted, err := e.challenges.Delete(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", wrapped, nil)
		return nil, wrapped
	}
	if !deleted {
		// Another request completed this challenge concurrently.
		e.metricInc(MetricMFAReplayAttempt)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAReplay, false, account.AccountID, "", ErrInvalidMFACode, nil)
		return nil, ErrInvalidMFACode
	}

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.AccountID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricMFASuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, account.AccountID, result.SessionID, nil, nil)
	return result, nil
}

func (e *Engine) beginMFAChallenge(ctx context.Context, account *Account) (*LoginResult, error) {
	challengeID := uuid.NewString()
	record := &mfaChallenge{
		AccountID: account.AccountID,
		ExpiresAt: time.Now().Add(e.config.TOTP.ChallengeTTL).Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID, record, e.config.TOTP.ChallengeTTL); err != nil {
		e.metricInc(MetricLoginFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", wrapped, nil)
		return nil, wrapped
	}

	e.metricInc(MetricMFAChallengeIssued)
	e.emitAudit(ctx, auditEventMFARequired, true, account.AccountID, "", nil, nil)
	return &LoginResult{
		MFARequired: true,
		ChallengeID: challengeID,
	}, nil
}

// verifyChallengeCode accepts the second factor for a login challenge:
// a TOTP code within the skew window (with monotonic counter replay
// protection) or a single-use backup code.
func (e *Engine) verifyChallengeCode(ctx context.Context, account *Account, enrollment *MFAEnrollment, code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ErrInvalidMFACode
	}

	if len(trimmed) == e.config.TOTP.Digits && isNumericString(trimmed) {
		return e.verifyTOTPCode(ctx, account.AccountID, enrollment, trimmed)
	}

	consumed, err := e.accounts.ConsumeBackupCode(ctx, account.AccountID, hashBackupCode(trimmed))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !consumed {
		e.metricInc(MetricBackupCodeFailed)
		return ErrInvalidMFACode
	}

	e.metricInc(MetricBackupCodeUsed)
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, account.AccountID, "", nil, nil)
	return nil
}

// verifyTOTPCode checks a TOTP code and advances the last-used counter
// so the same code cannot be replayed inside its validity window.
func (e *Engine) verifyTOTPCode(ctx context.Context, accountID string, enrollment *MFAEnrollment, code string) error {
	ok, counter, err := e.totp.VerifyCode(enrollment.Secret, code, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrInvalidMFACode
	}

	if e.config.TOTP.EnforceReplayProtection {
		if counter <= enrollment.LastUsedCounter {
			e.metricInc(MetricMFAReplayAttempt)
			e.emitAudit(ctx, auditEventMFAReplay, false, accountID, "", ErrInvalidMFACode, nil)
			return ErrInvalidMFACode
		}
		if err := e.accounts.UpdateTOTPLastUsedCounter(ctx, accountID, counter); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (e *Engine) failChallengeAttempt(ctx context.Context, challengeID, accountID string) error {
	exceeded, err := e.challenges.RecordFailure(ctx, challengeID, e.config.TOTP.ChallengeMaxAttempts)
	if err != nil {
		e.metricInc(MetricMFAFailure)
		mapped := mapChallengeError(err)
		e.emitAudit(ctx, auditEventMFAFailure, false, accountID, "", mapped, nil)
		return mapped
	}
	if exceeded {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAAttemptsExceeded, false, accountID, "", ErrMFAAttemptsExceeded, nil)
		return ErrMFAAttemptsExceeded
	}
	e.metricInc(MetricMFAFailure)
	e.emitAudit(ctx, auditEventMFAFailure, false, accountID, "", ErrInvalidMFACode, nil)
	return ErrInvalidMFACode
}

// maybeUpgradeHash rehashes a freshly verified credential when the
// stored hash predates a parameter strengthening. Upgrade failures do
// not block the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, account *Account, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.passwordHash.Hash(secret)
	if err != nil {
		return
	}
	if err := e.accounts.UpdatePasswordHash(ctx, account.AccountID, newHash); err != nil {
		return
	}
	account.PasswordHash = newHash
	e.metricInc(MetricCredentialRotated)
	e.emitAudit(ctx, auditEventCredentialRotated, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"reason": "hash_upgrade"}
	})
}

func (e *Engine) lookupByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := e.accounts.GetAccountByIdentifier(ctx, trimmed)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

func mapChallengeError(err error) error {
	switch {
	case errors.Is(err, errChallengeNotFound), errors.Is(err, errChallengeExpired):
		return ErrMFAChallengeExpired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func mapProviderError(err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
