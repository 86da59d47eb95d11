package idforge

import (
	"strings"
	"testing"
	"time"
)

func TestValidConfigPasses(t *testing.T) {
	if err := testConfig(t).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "unsupported signing method",
			mutate:  func(c *Config) { c.JWT.SigningMethod = "RS256" },
			wantSub: "signing method",
		},
		{
			name:    "missing private key",
			mutate:  func(c *Config) { c.JWT.PrivateKey = nil },
			wantSub: "private key",
		},
		{
			name:    "non-positive access ttl",
			mutate:  func(c *Config) { c.JWT.AccessTTL = 0 },
			wantSub: "access TTL",
		},
		{
			name:    "refresh ttl not exceeding access ttl",
			mutate:  func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL },
			wantSub: "refresh TTL",
		},
		{
			name:    "non-positive session ttl",
			mutate:  func(c *Config) { c.Session.TTL = 0 },
			wantSub: "session TTL",
		},
		{
			name:    "empty session prefix",
			mutate:  func(c *Config) { c.Session.RedisPrefix = "" },
			wantSub: "prefix",
		},
		{
			name:    "totp digits too small",
			mutate:  func(c *Config) { c.TOTP.Digits = 4 },
			wantSub: "digits",
		},
		{
			name:    "totp digits too large",
			mutate:  func(c *Config) { c.TOTP.Digits = 9 },
			wantSub: "digits",
		},
		{
			name:    "totp period too short",
			mutate:  func(c *Config) { c.TOTP.Period = 10 },
			wantSub: "period",
		},
		{
			name:    "totp skew out of range",
			mutate:  func(c *Config) { c.TOTP.Skew = 3 },
			wantSub: "skew",
		},
		{
			name:    "challenge ttl non-positive",
			mutate:  func(c *Config) { c.TOTP.ChallengeTTL = 0 },
			wantSub: "challenge TTL",
		},
		{
			name:    "challenge attempts below one",
			mutate:  func(c *Config) { c.TOTP.ChallengeMaxAttempts = 0 },
			wantSub: "attempts",
		},
		{
			name:    "backup code count out of range",
			mutate:  func(c *Config) { c.TOTP.BackupCodeCount = 33 },
			wantSub: "backup code count",
		},
		{
			name:    "backup code length too short",
			mutate:  func(c *Config) { c.TOTP.BackupCodeLength = 4 },
			wantSub: "backup code length",
		},
		{
			name:    "password min length too small",
			mutate:  func(c *Config) { c.Password.MinLength = 8 },
			wantSub: "minimum length",
		},
		{
			name:    "reset ttl non-positive",
			mutate:  func(c *Config) { c.PasswordReset.TTL = -time.Minute },
			wantSub: "reset TTL",
		},
		{
			name:    "reset attempts below one",
			mutate:  func(c *Config) { c.PasswordReset.MaxAttempts = 0 },
			wantSub: "reset attempts",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestDisabledTOTPSkipsTOTPValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.TOTP.Enabled = false
	cfg.TOTP.Digits = 0
	cfg.TOTP.Period = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled TOTP config rejected: %v", err)
	}
}
