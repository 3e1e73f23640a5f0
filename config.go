package goGuard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/permission"
)

// Config holds every engine setting. Build it with [DefaultConfig] and
// override fields; the engine copies it at Build time.
type Config struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	TOTP      TOTPConfig      `yaml:"totp"`
	Password  PasswordConfig  `yaml:"password"`
	Session   SessionConfig   `yaml:"session"`
	Tenant    TenantConfig    `yaml:"tenant"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Mail      MailConfig      `yaml:"mail"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig bounds login attempts per client key.
type RateLimitConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
	// FailClosed denies logins when the limiter backend errors. The default
	// lets them through and logs a warning.
	FailClosed bool `yaml:"fail_closed"`
}

/*
====================================
TOTP CONFIG
====================================
*/

type TOTPConfig struct {
	Issuer    string `yaml:"issuer"`
	Digits    int    `yaml:"digits"`
	Period    int    `yaml:"period"`
	Algorithm string `yaml:"algorithm"`
	// ToleranceSteps is how many periods on either side of now still verify.
	ToleranceSteps int `yaml:"tolerance_steps"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	MinLength      int    `yaml:"min_length"`
	Memory         uint32 `yaml:"memory"` // in KB
	Time           uint32 `yaml:"time"`
	Parallelism    uint8  `yaml:"parallelism"`
	SaltLength     uint32 `yaml:"salt_length"`
	KeyLength      uint32 `yaml:"key_length"`
	UpgradeOnLogin bool   `yaml:"upgrade_on_login"`
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SigningMethod string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	// Secret is the hs256 key as text. PrivateKey wins when both are set.
	Secret     string        `yaml:"secret"`
	PrivateKey []byte        `yaml:"-"`
	PublicKey  []byte        `yaml:"-"`
	Issuer     string        `yaml:"issuer"`
	Leeway     time.Duration `yaml:"leeway"`
}

func (c SessionConfig) signingKey() []byte {
	if len(c.PrivateKey) > 0 {
		return c.PrivateKey
	}
	return []byte(c.Secret)
}

/*
====================================
TENANT CONFIG
====================================
*/

type TenantConfig struct {
	// PlatformRoles may select another tenant and act at platform scope.
	PlatformRoles []string      `yaml:"platform_roles"`
	OverrideTTL   time.Duration `yaml:"override_ttl"`
	Column        string        `yaml:"column"`
	// ExtraEntities are partitioned in addition to the built-in catalog.
	ExtraEntities []string `yaml:"extra_entities"`
}

/*
====================================
AUDIT / METRICS / MAIL
====================================
*/

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MailConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the production defaults. Session.Secret is empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxAttempts: 10,
			Window:      15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:         "goGuard",
			Digits:         6,
			Period:         30,
			Algorithm:      "SHA1",
			ToleranceSteps: 5,
		},
		Password: PasswordConfig{
			MinLength:      6,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			TTL:           12 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "goguard",
		},
		Tenant: TenantConfig{
			PlatformRoles: []string{permission.RoleSuperAdmin},
			OverrideTTL:   time.Hour,
			Column:        "tenant_id",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Mail: MailConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	out.Tenant.PlatformRoles = append([]string(nil), cfg.Tenant.PlatformRoles...)
	out.Tenant.ExtraEntities = append([]string(nil), cfg.Tenant.ExtraEntities...)
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

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("RateLimit MaxAttempts must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.ToleranceSteps < 0 || c.TOTP.ToleranceSteps > 10 {
		return errors.New("TOTP ToleranceSteps must be between 0 and 10")
	}
	if _, err := totpDigest(c.TOTP.Algorithm); err != nil {
		return err
	}
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	switch c.Session.SigningMethod {
	case "hs256":
		if len(c.Session.signingKey()) < 32 {
			return errors.New("hs256 requires a Session secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Session.PrivateKey) == 0 || len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Session signing method")
	}

	// Tenant
	if c.Tenant.OverrideTTL <= 0 {
		return errors.New("Tenant OverrideTTL must be > 0")
	}
	if c.Tenant.OverrideTTL > 24*time.Hour {
		return errors.New("Tenant OverrideTTL must be <= 24h")
	}
	if strings.TrimSpace(c.Tenant.Column) == "" {
		return errors.New("Tenant Column must be set")
	}
	for _, entity := range c.Tenant.ExtraEntities {
		if entity == audit.PlatformLogEntity {
			return errors.New("Tenant ExtraEntities must not partition " + audit.PlatformLogEntity)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Mail.Timeout <= 0 {
		return errors.New("Mail Timeout must be > 0")
	}
	return nil
}
