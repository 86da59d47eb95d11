package internaldefs

import (
	"github.com/idforge/idforge"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   idforge.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   idforge.MetricID
	Name string
	Help string
}

// CounterDefs is the exported counter catalog, in a stable order.
var CounterDefs = []CounterDef{
	{ID: idforge.MetricLoginSuccess, Name: "idforge_login_success_total", Help: "Successful login attempts."},
	{ID: idforge.MetricLoginFailure, Name: "idforge_login_failure_total", Help: "Failed login attempts."},
	{ID: idforge.MetricMFAChallengeIssued, Name: "idforge_mfa_challenge_issued_total", Help: "Login flows requiring an MFA step-up."},
	{ID: idforge.MetricMFASuccess, Name: "idforge_mfa_success_total", Help: "Successful MFA completions."},
	{ID: idforge.MetricMFAFailure, Name: "idforge_mfa_failure_total", Help: "Failed MFA completions."},
	{ID: idforge.MetricMFAReplayAttempt, Name: "idforge_mfa_replay_attempt_total", Help: "Detected MFA code replay attempts."},
	{ID: idforge.MetricMFAEnrolled, Name: "idforge_mfa_enrolled_total", Help: "Confirmed TOTP enrollments."},
	{ID: idforge.MetricMFADisabled, Name: "idforge_mfa_disabled_total", Help: "TOTP disable operations."},
	{ID: idforge.MetricBackupCodeUsed, Name: "idforge_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: idforge.MetricBackupCodeFailed, Name: "idforge_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: idforge.MetricBackupCodeRegenerated, Name: "idforge_backup_code_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: idforge.MetricRefreshSuccess, Name: "idforge_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: idforge.MetricRefreshFailure, Name: "idforge_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: idforge.MetricTokenReuseDetected, Name: "idforge_token_reuse_detected_total", Help: "Refresh token reuses that revoked a chain."},
	{ID: idforge.MetricSessionCreated, Name: "idforge_session_created_total", Help: "Created sessions."},
	{ID: idforge.MetricSessionRevoked, Name: "idforge_session_revoked_total", Help: "Revoked sessions."},
	{ID: idforge.MetricLogout, Name: "idforge_logout_total", Help: "Single-session logout operations."},
	{ID: idforge.MetricLogoutAll, Name: "idforge_logout_all_total", Help: "Logout-all operations."},
	{ID: idforge.MetricPasswordResetRequested, Name: "idforge_password_reset_requested_total", Help: "Password reset requests."},
	{ID: idforge.MetricPasswordResetSuccess, Name: "idforge_password_reset_success_total", Help: "Successful password reset confirmations."},
	{ID: idforge.MetricPasswordResetFailure, Name: "idforge_password_reset_failure_total", Help: "Failed password reset confirmations."},
	{ID: idforge.MetricPasswordChangeSuccess, Name: "idforge_password_change_success_total", Help: "Successful password changes."},
	{ID: idforge.MetricPasswordChangeFailure, Name: "idforge_password_change_failure_total", Help: "Failed password changes."},
	{ID: idforge.MetricCredentialRotated, Name: "idforge_credential_rotated_total", Help: "Stored credential hash replacements."},
}

// HistogramDefs is the exported histogram catalog.
var HistogramDefs = []HistogramDef{
	{ID: idforge.MetricVerifyLatency, Name: "idforge_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bucket bounds as Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"1",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds as instrument-name-safe
// suffixes for backends without a native histogram shape.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// exporter width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
