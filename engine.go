package goGuard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/mail"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/tenant"
	"go.uber.org/zap"
)

// RateLimiter gates login attempts per client key.
type RateLimiter = rate.Limiter

// Engine is the access control core. Build it with [New]; after Build it is
// safe for concurrent use.
type Engine struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	registry    *permission.Registry
	roles       *permission.RoleManager
	permissions *permission.Resolver

	accounts credstore.Store
	limiter  rate.Limiter
	hasher   *password.Argon2
	totp     *totpManager
	sessions *session.Manager

	tenants     *tenant.Resolver
	interceptor *tenant.Interceptor

	mail    *mail.Dispatcher
	audit   *audit.Dispatcher
	metrics *Metrics
}

// Close drains the audit buffer and waits for in-flight mail.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	e.mail.Wait()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Registry returns the permission catalog.
func (e *Engine) Registry() *permission.Registry {
	return e.registry
}

// Interceptor returns the tenant query interceptor shared by every scoped
// executor the engine hands out.
func (e *Engine) Interceptor() *tenant.Interceptor {
	return e.interceptor
}

// ParseSession verifies a session token and returns its snapshot.
func (e *Engine) ParseSession(token string) (*Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	s, err := e.sessions.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return s, nil
}

// Logout records the end of a session. Tokens are stateless; the caller
// discards the cookie.
func (e *Engine) Logout(ctx context.Context, s *Session) {
	if e == nil || s == nil {
		return
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionLogout,
		ActorID:    s.AccountID,
		TenantID:   s.TenantID,
		Resource:   "Session",
		ResourceID: s.ID,
		Success:    true,
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// findAccount maps store misses to ErrNotFound.
func (e *Engine) findAccount(ctx context.Context, id string) (*Account, error) {
	a, err := e.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (e *Engine) sendMail(msg mail.Message) {
	e.mail.Go(msg)
}

// countingMailer records failed sends in the engine metrics.
type countingMailer struct {
	inner   mail.Mailer
	metrics *Metrics
}

func (m countingMailer) Send(ctx context.Context, msg mail.Message) error {
	err := m.inner.Send(ctx, msg)
	if err != nil && m.metrics != nil {
		m.metrics.Inc(MetricMailFailure)
	}
	return err
}
