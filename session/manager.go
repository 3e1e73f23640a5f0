package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/tenant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	typeSession  = "session"
	typeOverride = "tenant_override"
)

var (
	// ErrInvalidToken wraps every parse, signature, type or expiry failure.
	ErrInvalidToken = errors.New("invalid token")
)

// Config configures a [Manager].
type Config struct {
	TTL           time.Duration
	OverrideTTL   time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for hs256, or the ed25519 private key.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
}

// Manager signs and verifies tokens.
type Manager struct {
	config Config
	keys   keyPair
	now    func() time.Time
}

type sessionClaims struct {
	Type              string   `json:"typ"`
	Role              string   `json:"role"`
	TenantID          string   `json:"tid,omitempty"`
	Permissions       []string `json:"perms"`
	MustResetPassword bool     `json:"mrp,omitempty"`
	jwt.RegisteredClaims
}

type overrideClaims struct {
	Type     string `json:"typ"`
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg. now may be nil.
func NewManager(cfg Config, now func() time.Time) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be > 0")
	}
	if cfg.OverrideTTL <= 0 {
		return nil, errors.New("tenant override TTL must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	keys, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, keys: keys, now: now}, nil
}

// Issue signs s. ID, IssuedAt and ExpiresAt are assigned and returned in the
// filled-in copy.
func (m *Manager) Issue(s Session) (string, Session, error) {
	now := m.now().Truncate(time.Second)
	s.ID = uuid.NewString()
	s.IssuedAt = now
	s.ExpiresAt = now.Add(m.config.TTL)

	claims := sessionClaims{
		Type:              typeSession,
		Role:              s.Role,
		TenantID:          s.TenantID,
		Permissions:       s.Permissions.Tokens(),
		MustResetPassword: s.MustResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.AccountID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := m.sign(claims)
	if err != nil {
		return "", Session{}, err
	}
	return token, s, nil
}

// Parse verifies a session token and returns its snapshot.
func (m *Manager) Parse(token string) (*Session, error) {
	var claims sessionClaims
	if err := m.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.Type != typeSession || claims.Subject == "" {
		return nil, fmt.Errorf("%w: not a session token", ErrInvalidToken)
	}
	s := &Session{
		ID:                claims.ID,
		AccountID:         claims.Subject,
		Role:              claims.Role,
		TenantID:          claims.TenantID,
		Permissions:       permission.NewSet(claims.Permissions...),
		MustResetPassword: claims.MustResetPassword,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// IssueOverride signs a tenant override bound to accountID.
func (m *Manager) IssueOverride(accountID, tenantID string) (string, tenant.Override, error) {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(tenantID) == "" {
		return "", tenant.Override{}, errors.New("override requires account and tenant")
	}
	now := m.now().Truncate(time.Second)
	o := tenant.Override{AccountID: accountID, TenantID: tenantID, ExpiresAt: now.Add(m.config.OverrideTTL)}

	token, err := m.sign(overrideClaims{
		Type:     typeOverride,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(o.ExpiresAt),
		},
	})
	if err != nil {
		return "", tenant.Override{}, err
	}
	return token, o, nil
}

// ParseOverride verifies an override token.
func (m *Manager) ParseOverride(token string) (*tenant.Override, error) {
	var claims overrideClaims
	if err := m.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.Type != typeOverride || claims.Subject == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("%w: not a tenant override token", ErrInvalidToken)
	}
	o := &tenant.Override{AccountID: claims.Subject, TenantID: claims.TenantID}
	if claims.ExpiresAt != nil {
		o.ExpiresAt = claims.ExpiresAt.Time
	}
	return o, nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(m.keys.method, claims).SignedString(m.keys.sign)
}

func (m *Manager) parse(token string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.keys.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.keys.verify, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
