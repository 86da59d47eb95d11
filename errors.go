package idforge

import "errors"

var (
	// ErrInvalidCredentials is returned for both unknown identifiers and
	// wrong passwords, deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when the account status blocks login.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned when the account has been disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is returned by account-targeted operations when
	// the provider has no such account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMFARequired signals that credential verification succeeded but a
	// second factor must be completed before tokens are issued.
	ErrMFARequired = errors.New("mfa required")
	// ErrInvalidMFACode is returned for a wrong TOTP code or backup code.
	// The caller cannot tell which factor failed.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrMFAChallengeExpired is returned when a login challenge has timed
	// out or does not exist.
	ErrMFAChallengeExpired = errors.New("mfa challenge expired")
	// ErrMFAAttemptsExceeded is returned when a challenge burns through
	// its attempt budget; the challenge is destroyed.
	ErrMFAAttemptsExceeded = errors.New("mfa challenge attempts exceeded")
	// ErrMFANotEnrolled is returned by MFA operations on accounts without
	// a confirmed enrollment.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrMFAAlreadyEnrolled is returned by BeginTOTPEnrollment when an
	// enabled enrollment already exists.
	ErrMFAAlreadyEnrolled = errors.New("mfa already enrolled")

	// ErrTokenExpired is returned by VerifyAccess for well-formed,
	// correctly signed access tokens past their lifetime.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalidSignature is returned by VerifyAccess for every
	// other verification failure.
	ErrTokenInvalidSignature = errors.New("access token signature invalid")
	// ErrTokenReuseDetected is returned when a retired refresh token is
	// presented. The whole rotation chain and its session are revoked.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrRefreshInvalid is returned for malformed, unknown, expired, or
	// already revoked refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrSessionNotFound is returned when a session does not exist or has
	// expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrResetTokenExpiredOrUsed is returned for unknown, expired, or
	// consumed password reset tokens; the three are indistinguishable.
	ErrResetTokenExpiredOrUsed = errors.New("reset token expired or used")

	// ErrPermissionDenied is returned by permission-gated helpers.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPasswordPolicy is returned when a new secret fails the minimum
	// strength requirements.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned by ChangePassword when the new secret
	// verifies against the current hash.
	ErrPasswordReuse = errors.New("new password must differ from current password")

	// ErrEngineNotReady is returned when an Engine method is invoked on
	// a nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable wraps infrastructure failures (Redis, account
	// provider) so they stay distinct from the auth-domain taxonomy.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
