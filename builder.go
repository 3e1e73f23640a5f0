package goGuard

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/mail"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/query"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/tenant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A builder builds once.
type Builder struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	accounts credstore.Store
	limiter  rate.Limiter
	redis    redis.UniversalClient
	mailer   mail.Mailer

	auditSinks []AuditSink
	auditLog   query.Executor

	registry *permission.Registry
	roles    *permission.RoleManager

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for windows, TOTP steps and token expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithAccountStore sets the credential store. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithRateLimiter replaces the login limiter.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

// WithRedis shares login windows across instances through Redis. Ignored
// when WithRateLimiter is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the mail collaborator. Without one, messages are logged.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink adds an audit sink. Sinks receive every event in order.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	if sink != nil {
		b.auditSinks = append(b.auditSinks, sink)
	}
	return b
}

// WithAuditLog persists audit events as AuditLog rows through exec. Tenant
// events are written through the tenant interceptor.
func (b *Builder) WithAuditLog(exec query.Executor) *Builder {
	b.auditLog = exec
	return b
}

// WithPermissions replaces the permission catalog and the role defaults that
// draw from it.
func (b *Builder) WithPermissions(registry *permission.Registry, roles *permission.RoleManager) *Builder {
	b.registry = registry
	b.roles = roles
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if (b.registry == nil) != (b.roles == nil) {
		return nil, errors.New("permission registry and role manager must be provided together")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	registry, roles := b.registry, b.roles
	if registry == nil {
		registry = permission.DefaultRegistry()
		roles = permission.DefaultRoleManager(registry)
	}

	limiterCfg := rate.Config{MaxAttempts: cfg.RateLimit.MaxAttempts, Window: cfg.RateLimit.Window}
	limiter := b.limiter
	switch {
	case limiter != nil:
	case b.redis != nil:
		limiter = rate.NewRedis(b.redis, limiterCfg)
	default:
		limiter = rate.NewMemory(limiterCfg, now)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(session.Config{
		TTL:           cfg.Session.TTL,
		OverrideTTL:   cfg.Tenant.OverrideTTL,
		SigningMethod: session.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cfg.Session.signingKey(),
		PublicKey:     cfg.Session.PublicKey,
		Issuer:        cfg.Session.Issuer,
		Leeway:        cfg.Session.Leeway,
	}, now)
	if err != nil {
		return nil, err
	}

	entities := append(append([]string(nil), tenant.DefaultEntities...), cfg.Tenant.ExtraEntities...)
	interceptor := tenant.NewInterceptor(tenant.NewCatalog(cfg.Tenant.Column, entities...))

	metrics := NewMetrics(cfg.Metrics)

	mailer := b.mailer
	if mailer == nil {
		mailer = mail.NewLogMailer(logger)
	}

	sinks := append([]AuditSink(nil), b.auditSinks...)
	if b.auditLog != nil {
		exec := b.auditLog
		sinks = append(sinks, audit.NewRecordSink(func(tenantID string) query.Executor {
			scope := tenant.PlatformScope()
			if tenantID != "" {
				scope = tenant.ForTenant(tenantID)
			}
			return tenant.NewScopedExecutor(exec, interceptor, scope, logger)
		}, logger))
	}
	var auditor *audit.Dispatcher
	if cfg.Audit.Enabled && len(sinks) > 0 {
		var sink AuditSink = audit.MultiSink(sinks)
		if len(sinks) == 1 {
			sink = sinks[0]
		}
		auditor = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink, logger)
	}

	b.built = true

	return &Engine{
		config:      cfg,
		logger:      logger.Named("goguard"),
		now:         now,
		registry:    registry,
		roles:       roles,
		permissions: permission.NewResolver(credstore.Templates(b.accounts), roles),
		accounts:    b.accounts,
		limiter:     limiter,
		hasher:      hasher,
		totp:        newTOTPManager(cfg.TOTP),
		sessions:    sessions,
		tenants:     tenant.NewResolver(tenant.RoleCapability(cfg.Tenant.PlatformRoles...), now),
		interceptor: interceptor,
		mail:        mail.NewDispatcher(countingMailer{inner: mailer, metrics: metrics}, cfg.Mail.Timeout, logger),
		audit:       auditor,
		metrics:     metrics,
	}, nil
}
