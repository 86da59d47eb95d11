package idforge

import (
	"errors"
	"time"

	"github.com/idforge/idforge/jwt"
	"github.com/idforge/idforge/password"
)

// Config is the engine's immutable configuration tree. Construct it
// from [DefaultConfig], override what the deployment needs, and pass it
// to the builder. The engine never reads environment variables or
// global state.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	TOTP          TOTPConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// JWTConfig controls access token signing and refresh chain lifetime.
type JWTConfig struct {
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Issuer   string
	Audience string
	Leeway   time.Duration

	// KeyID and VerifyKeys enable signing-key rotation: new tokens are
	// stamped with KeyID while tokens signed under retired keys keep
	// verifying until they expire.
	KeyID      string
	VerifyKeys map[string][]byte
}

// SessionConfig controls the Redis session registry.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// TOTPConfig controls TOTP verification and the MFA login challenge.
type TOTPConfig struct {
	Enabled   bool
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string

	// EnforceReplayProtection rejects a code at or below the last
	// accepted HOTP counter even inside the skew window.
	EnforceReplayProtection bool

	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int

	BackupCodeCount  int
	BackupCodeLength int
}

// PasswordConfig carries the argon2id parameters and password policy.
type PasswordConfig struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int

	// UpgradeOnLogin transparently rehashes a verified credential when
	// the stored hash predates a parameter strengthening.
	UpgradeOnLogin bool
}

// Params converts the config into hasher parameters.
func (c PasswordConfig) Params() password.Params {
	return password.Params{
		MemoryKB:    c.MemoryKB,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

// PasswordResetConfig controls single-use reset tokens.
type PasswordResetConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. Signing keys and
// the TOTP issuer have no sane defaults and must be set by the host.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodEd25519),
			AccessTTL:     10 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "ifs",
			TTL:         30 * 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Enabled:                 true,
			Digits:                  6,
			Period:                  30,
			Skew:                    1,
			Algorithm:               "SHA1",
			EnforceReplayProtection: true,
			ChallengeTTL:            5 * time.Minute,
			ChallengeMaxAttempts:    5,
			BackupCodeCount:         10,
			BackupCodeLength:        10,
		},
		Password: PasswordConfig{
			MemoryKB:       64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			TTL:         30 * time.Minute,
			MaxAttempts: 5,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519, jwt.MethodHS256:
	default:
		return errors.New("config: unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("config: JWT private key required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("config: JWT access TTL must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session TTL must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("config: session redis prefix required")
	}
	if c.TOTP.Enabled {
		if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
			return errors.New("config: TOTP digits must be 6..8")
		}
		if c.TOTP.Period < 15 {
			return errors.New("config: TOTP period too short")
		}
		if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
			return errors.New("config: TOTP skew must be 0..2")
		}
		if c.TOTP.ChallengeTTL <= 0 {
			return errors.New("config: MFA challenge TTL must be positive")
		}
		if c.TOTP.ChallengeMaxAttempts < 1 {
			return errors.New("config: MFA challenge attempts must be at least 1")
		}
		if c.TOTP.BackupCodeCount < 1 || c.TOTP.BackupCodeCount > 32 {
			return errors.New("config: backup code count must be 1..32")
		}
		if c.TOTP.BackupCodeLength < 8 {
			return errors.New("config: backup code length must be at least 8")
		}
	}
	if c.Password.MinLength < 10 {
		return errors.New("config: password minimum length must be at least 10")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("config: password reset TTL must be positive")
	}
	if c.PasswordReset.MaxAttempts < 1 {
		return errors.New("config: password reset attempts must be at least 1")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.PrivateKey = cloneBytes(c.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(c.JWT.PublicKey)
	if c.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(c.JWT.VerifyKeys))
		for kid, key := range c.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
