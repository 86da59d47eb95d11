package idforge

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventSessionRevoked        = "session_revoked"
	auditEventMFARequired           = "mfa_required"
	auditEventMFASuccess            = "mfa_success"
	auditEventMFAFailure            = "mfa_failure"
	auditEventMFAAttemptsExceeded   = "mfa_attempts_exceeded"
	auditEventMFAReplay             = "mfa_replay_detected"
	auditEventTOTPSetupRequested    = "totp_setup_requested"
	auditEventTOTPEnabled           = "totp_enabled"
	auditEventTOTPDisabled          = "totp_disabled"
	auditEventBackupCodesGenerated  = "backup_codes_generated"
	auditEventBackupCodeUsed        = "backup_code_used"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventCredentialRotated     = "credential_rotated"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrAccountLocked      auditErrorCode = "account_locked"
	auditErrAccountDisabled    auditErrorCode = "account_disabled"
	auditErrAccountNotFound    auditErrorCode = "account_not_found"
	auditErrMFARequired        auditErrorCode = "mfa_required"
	auditErrMFAInvalid         auditErrorCode = "mfa_invalid"
	auditErrMFAExceeded        auditErrorCode = "mfa_attempts_exceeded"
	auditErrMFANotEnrolled     auditErrorCode = "mfa_not_enrolled"
	auditErrTokenExpired       auditErrorCode = "token_expired"
	auditErrTokenInvalid       auditErrorCode = "token_invalid"
	auditErrTokenReuse         auditErrorCode = "token_reuse"
	auditErrSessionNotFound    auditErrorCode = "session_not_found"
	auditErrResetInvalid       auditErrorCode = "reset_invalid"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrPasswordReuse      auditErrorCode = "password_reuse"
	auditErrPermissionDenied   auditErrorCode = "permission_denied"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditCodeFor(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditCodeFor(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrInvalidMFACode), errors.Is(err, ErrMFAChallengeExpired), errors.Is(err, ErrMFAAlreadyEnrolled):
		return auditErrMFAInvalid
	case errors.Is(err, ErrMFAAttemptsExceeded):
		return auditErrMFAExceeded
	case errors.Is(err, ErrMFANotEnrolled):
		return auditErrMFANotEnrolled
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrTokenReuse
	case errors.Is(err, ErrTokenInvalidSignature), errors.Is(err, ErrRefreshInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrResetTokenExpiredOrUsed):
		return auditErrResetInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
