package audit

import (
	"context"
	"encoding/json"

	"github.com/MrEthical07/goGuard/query"
	"go.uber.org/zap"
)

const (
	// LogEntity holds events that happened inside a tenant. It is partitioned.
	LogEntity = "AuditLog"
	// PlatformLogEntity holds events with no tenant: failed logins for unknown
	// accounts, rate-limited attempts, platform operator actions. It is not
	// partitioned and must stay out of the tenant catalog.
	PlatformLogEntity = "PlatformAuditLog"
)

// Schema creates both audit tables for the SQL executor (PostgreSQL dialect).
const Schema = `
create table if not exists audit_logs (
	id          text primary key default gen_random_uuid()::text,
	tenant_id   text not null,
	action      text not null,
	severity    text not null,
	actor_id    text,
	resource    text,
	resource_id text,
	ip          text,
	success     boolean not null,
	error       text,
	details     text,
	created_at  timestamptz not null
);
create index if not exists audit_logs_tenant_idx on audit_logs(tenant_id, created_at);
create table if not exists platform_audit_logs (
	id          text primary key default gen_random_uuid()::text,
	action      text not null,
	severity    text not null,
	actor_id    text,
	resource    text,
	resource_id text,
	ip          text,
	success     boolean not null,
	error       text,
	details     text,
	created_at  timestamptz not null
);
create index if not exists platform_audit_logs_created_idx on platform_audit_logs(created_at);`

// RecordSink persists events as audit rows.
//
// executorFor returns the executor for one tenant id and is expected to be
// tenant scoped, so the partition column is stamped by the interceptor like
// any other write. Events with a tenant go to [LogEntity]; events without one
// go to [PlatformLogEntity] and never produce a tenantless AuditLog row.
type RecordSink struct {
	executorFor func(tenantID string) query.Executor
	logger      *zap.Logger
}

func NewRecordSink(executorFor func(tenantID string) query.Executor, logger *zap.Logger) *RecordSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordSink{executorFor: executorFor, logger: logger.Named("audit.record")}
}

func (s *RecordSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.executorFor == nil {
		return
	}
	exec := s.executorFor(event.TenantID)
	if exec == nil {
		return
	}

	row := query.Record{
		"action":      event.Action,
		"severity":    string(event.Severity),
		"actor_id":    nullable(event.ActorID),
		"resource":    nullable(event.Resource),
		"resource_id": nullable(event.ResourceID),
		"ip":          nullable(event.IP),
		"success":     event.Success,
		"error":       nullable(event.Error),
		"created_at":  event.Timestamp,
	}
	if len(event.Details) > 0 {
		if b, err := json.Marshal(event.Details); err == nil {
			row["details"] = string(b)
		}
	}

	entity := LogEntity
	if event.TenantID == "" {
		entity = PlatformLogEntity
	}
	_, err := exec.Execute(ctx, query.Operation{Entity: entity, Kind: query.Create, Data: row})
	if err != nil {
		s.logger.Warn("audit row not written",
			zap.String("action", event.Action),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err),
		)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
