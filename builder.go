package idforge

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/idforge/idforge/internal/audit"
	"github.com/idforge/idforge/jwt"
	"github.com/idforge/idforge/password"
	"github.com/idforge/idforge/permission"
	"github.com/idforge/idforge/session"
	"github.com/idforge/idforge/token"
)

const chainKeyPrefix = "ifr"

// Builder assembles an [Engine] from its dependencies. A builder is
// single-use; Build returns an error on a second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	roles map[string][]string

	accounts  AccountProvider
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, refresh chains, MFA
// challenges, and reset tokens.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoles sets the role catalog: role name to permission strings of
// the form "resource:action:scope".
func (b *Builder) WithRoles(roles map[string][]string) *Builder {
	b.roles = roles
	return b
}

// WithAccountProvider sets the host's account collection adapter.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink
// the dispatcher discards events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics system.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the VerifyAccess latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(b.roles) == 0 {
		return nil, errors.New("roles must be provided")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}

	catalog := permission.NewCatalog()
	for name, perms := range b.roles {
		if err := catalog.DefineRole(name, perms); err != nil {
			return nil, err
		}
	}
	catalog.Freeze()

	hasher, err := password.NewHasher(cfg.Password.Params())
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		catalog:      catalog,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		chainStore:   token.NewStore(b.redis, chainKeyPrefix),
		challenges:   newChallengeStore(b.redis),
		resets:       newResetStore(b.redis),
		accounts:     b.accounts,
		passwordHash: hasher,
		jwtManager:   jm,
		totp:         newTOTPManager(cfg.TOTP),
		metrics:      NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	b.built = true
	return engine, nil
}
