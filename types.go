package idforge

import (
	"context"
	"io"

	"github.com/idforge/idforge/internal/audit"
	"github.com/idforge/idforge/internal/metrics"
	"github.com/idforge/idforge/permission"
)

// AccountStatus is the lifecycle state of an account. Only active
// accounts can authenticate; locked and disabled accounts fail login
// with distinct errors.
type AccountStatus string

const (
	// AccountActive allows authentication.
	AccountActive AccountStatus = "active"
	// AccountLocked blocks authentication until an operator unlocks.
	AccountLocked AccountStatus = "locked"
	// AccountDisabled is a soft-disable; the record is retained.
	AccountDisabled AccountStatus = "disabled"
)

// Account is the engine's view of one account record. The provider owns
// persistence; the engine only ever reads these fields.
type Account struct {
	AccountID    string
	Identifier   string
	PasswordHash string
	Roles        []string
	Status       AccountStatus
}

// MFAEnrollment is the TOTP state for one account. Enabled flips only
// after the holder proves possession with a valid code; until then
// login does not demand a second factor. LastUsedCounter records the
// highest accepted HOTP counter so a captured code cannot be replayed
// within its validity window.
type MFAEnrollment struct {
	Secret          []byte
	Enabled         bool
	Verified        bool
	LastUsedCounter int64
}

// BackupCodeRecord stores the SHA-256 hash of a single backup code.
// The plaintext is returned to the holder exactly once and never
// persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// AccountProvider is the interface hosts implement to connect the
// engine to their account collection. Identifier lookups must match
// case-insensitively. All methods may be called concurrently.
type AccountProvider interface {
	GetAccountByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetAccountByID(ctx context.Context, accountID string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	GetMFAEnrollment(ctx context.Context, accountID string) (*MFAEnrollment, error)
	SaveMFAEnrollment(ctx context.Context, accountID string, enrollment *MFAEnrollment) error
	EnableMFAEnrollment(ctx context.Context, accountID string) error
	DisableMFAEnrollment(ctx context.Context, accountID string) error
	UpdateTOTPLastUsedCounter(ctx context.Context, accountID string, counter int64) error

	ReplaceBackupCodes(ctx context.Context, accountID string, codes []BackupCodeRecord) error
	// ConsumeBackupCode atomically marks the code matching hash as used.
	// It reports false when no unused code matches.
	ConsumeBackupCode(ctx context.Context, accountID string, hash [32]byte) (bool, error)
}

// LoginResult is returned by Login and CompleteMFA. When MFARequired is
// set, tokens are withheld and ChallengeID identifies the pending
// challenge to pass to CompleteMFA.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string

	MFARequired bool
	ChallengeID string
}

// AuthResult is the verified identity extracted from an access token by
// VerifyAccess. Permissions is the resolved snapshot embedded at
// issuance time.
type AuthResult struct {
	AccountID   string
	SessionID   string
	Roles       []string
	Permissions permission.Set
}

// TOTPEnrollment is returned by BeginTOTPEnrollment. SecretBase32 and
// BackupCodes are shown to the holder exactly once; the engine keeps
// only hashes of the backup codes.
type TOTPEnrollment struct {
	SecretBase32 string
	URI          string
	BackupCodes  []string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer], one per
// line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID = metrics.MetricID

// Metrics holds the engine's atomic counters and optional latency
// histogram.
type Metrics = metrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot = metrics.Snapshot
