package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/permission"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*SQLStore)(nil)

// Schema creates the tables used by [SQLStore] (PostgreSQL dialect).
const Schema = `
create table if not exists accounts (
	id                  text primary key,
	email               text not null unique,
	password_hash       text not null,
	role                text not null,
	tenant_id           text,
	custom_permissions  jsonb,
	totp_secret         bytea,
	totp_enabled        boolean not null default false,
	must_reset_password boolean not null default false
);
create index if not exists accounts_tenant_idx on accounts(tenant_id);
create table if not exists role_templates (
	tenant_id   text not null,
	role_name   text not null,
	permissions jsonb not null,
	primary key (tenant_id, role_name)
);`

const accountColumns = `id, email, password_hash, role, tenant_id, custom_permissions, totp_secret, totp_enabled, must_reset_password`

// SQLStore implements [Store] over database/sql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate applies [Schema].
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email=$1`, NormalizeEmail(email))
	return scanAccount(row)
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *SQLStore) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = NormalizeEmail(a.Email)
	a.Role = permission.NormalizeRole(a.Role)

	custom, err := encodePermissions(a.CustomPermissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into accounts(`+accountColumns+`) values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Email, a.PasswordHash, a.Role, nullString(a.TenantID), custom,
		nullBytes(a.TOTPSecret), a.TOTPEnabled, a.MustResetPassword,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *SQLStore) UpdatePassword(ctx context.Context, id, hash string, mustReset bool) error {
	return s.exec(ctx,
		`update accounts set password_hash=$1, must_reset_password=$2 where id=$3`, hash, mustReset, id)
}

func (s *SQLStore) SetMustResetPassword(ctx context.Context, id string, mustReset bool) error {
	return s.exec(ctx, `update accounts set must_reset_password=$1 where id=$2`, mustReset, id)
}

func (s *SQLStore) SetTOTP(ctx context.Context, id string, secret []byte, enabled bool) error {
	return s.exec(ctx,
		`update accounts set totp_secret=$1, totp_enabled=$2 where id=$3`, nullBytes(secret), enabled, id)
}

func (s *SQLStore) SetRole(ctx context.Context, id, role string) error {
	return s.exec(ctx, `update accounts set role=$1 where id=$2`, permission.NormalizeRole(role), id)
}

func (s *SQLStore) SetCustomPermissions(ctx context.Context, id string, perms *permission.Set) error {
	custom, err := encodePermissions(perms)
	if err != nil {
		return err
	}
	return s.exec(ctx, `update accounts set custom_permissions=$1 where id=$2`, custom, id)
}

func (s *SQLStore) FindRoleTemplate(ctx context.Context, tenantID, role string) (*RoleTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`select tenant_id, role_name, permissions from role_templates where tenant_id=$1 and role_name=$2`,
		tenantID, permission.NormalizeRole(role))

	var (
		tpl   RoleTemplate
		perms []byte
	)
	if err := row.Scan(&tpl.TenantID, &tpl.RoleName, &perms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	set, err := decodePermissions(perms)
	if err != nil {
		return nil, err
	}
	if set != nil {
		tpl.Permissions = *set
	}
	return &tpl, nil
}

func (s *SQLStore) SaveRoleTemplate(ctx context.Context, tpl RoleTemplate) error {
	perms, err := json.Marshal(tpl.Permissions.Tokens())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into role_templates(tenant_id, role_name, permissions) values($1,$2,$3)
		 on conflict (tenant_id, role_name) do update set permissions = excluded.permissions`,
		tpl.TenantID, permission.NormalizeRole(tpl.RoleName), perms)
	return err
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a        Account
		tenantID sql.NullString
		custom   []byte
		secret   []byte
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &tenantID, &custom, &secret,
		&a.TOTPEnabled, &a.MustResetPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.TenantID = tenantID.String
	if a.CustomPermissions, err = decodePermissions(custom); err != nil {
		return nil, err
	}
	if len(secret) > 0 {
		a.TOTPSecret = secret
	}
	return &a, nil
}

// encodePermissions maps nil to SQL NULL and any set, even empty, to a JSON array.
func encodePermissions(perms *permission.Set) (any, error) {
	if perms == nil {
		return nil, nil
	}
	data, err := json.Marshal(perms.Tokens())
	if err != nil {
		return nil, err
	}
	return data, nil
}

func decodePermissions(data []byte) (*permission.Set, error) {
	if data == nil || string(data) == "null" {
		return nil, nil
	}
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	set := permission.NewSet(tokens...)
	return &set, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
