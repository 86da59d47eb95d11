package idforge

import (
	"time"

	"github.com/idforge/idforge/internal/metrics"
)

// Metric identifiers re-exported for snapshot consumers and the
// exporter packages.
const (
	MetricLoginSuccess           = metrics.MetricLoginSuccess
	MetricLoginFailure           = metrics.MetricLoginFailure
	MetricMFAChallengeIssued     = metrics.MetricMFAChallengeIssued
	MetricMFASuccess             = metrics.MetricMFASuccess
	MetricMFAFailure             = metrics.MetricMFAFailure
	MetricMFAReplayAttempt       = metrics.MetricMFAReplayAttempt
	MetricMFAEnrolled            = metrics.MetricMFAEnrolled
	MetricMFADisabled            = metrics.MetricMFADisabled
	MetricBackupCodeUsed         = metrics.MetricBackupCodeUsed
	MetricBackupCodeFailed       = metrics.MetricBackupCodeFailed
	MetricBackupCodeRegenerated  = metrics.MetricBackupCodeRegenerated
	MetricRefreshSuccess         = metrics.MetricRefreshSuccess
	MetricRefreshFailure         = metrics.MetricRefreshFailure
	MetricTokenReuseDetected     = metrics.MetricTokenReuseDetected
	MetricSessionCreated         = metrics.MetricSessionCreated
	MetricSessionRevoked         = metrics.MetricSessionRevoked
	MetricLogout                 = metrics.MetricLogout
	MetricLogoutAll              = metrics.MetricLogoutAll
	MetricPasswordResetRequested = metrics.MetricPasswordResetRequested
	MetricPasswordResetSuccess   = metrics.MetricPasswordResetSuccess
	MetricPasswordResetFailure   = metrics.MetricPasswordResetFailure
	MetricPasswordChangeSuccess  = metrics.MetricPasswordChangeSuccess
	MetricPasswordChangeFailure  = metrics.MetricPasswordChangeFailure
	MetricCredentialRotated      = metrics.MetricCredentialRotated
	MetricVerifyLatency          = metrics.MetricVerifyLatency
)

// HistogramBounds returns the latency histogram's upper bucket bounds,
// excluding the implicit +Inf bucket. Exporters use this to label
// buckets consistently with the engine.
func HistogramBounds() []time.Duration {
	bounds := make([]time.Duration, len(metrics.BucketBounds))
	copy(bounds, metrics.BucketBounds[:])
	return bounds
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return metrics.New(metrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
