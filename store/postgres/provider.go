// Package postgres implements idforge.AccountProvider over a Postgres
// account schema (accounts, mfa_enrollments, backup_codes), connecting
// through database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/idforge/idforge"
)

// Provider is a Postgres-backed AccountProvider. Safe for concurrent
// use; the underlying pool handles connection reuse.
type Provider struct {
	db *sql.DB
}

var _ idforge.AccountProvider = (*Provider)(nil)

// Open connects to Postgres and returns a Provider.
func Open(dsn string) (*Provider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Provider{db: db}, nil
}

// NewProvider wraps an existing database handle.
func NewProvider(db *sql.DB) *Provider { return &Provider{db: db} }

// Close closes the underlying pool.
func (p *Provider) Close() error { return p.db.Close() }

const accountColumns = `id, identifier, password_hash, roles, status`

// CreateAccount inserts a new account row. Not part of the
// AccountProvider interface; provisioning is host-application territory
// and this is a convenience for hosts that keep accounts here anyway.
func (p *Provider) CreateAccount(ctx context.Context, account *idforge.Account) error {
	_, err := p.db.ExecContext(ctx, `
		insert into accounts(id, identifier, password_hash, roles, status)
		values ($1, $2, $3, $4, $5)
	`, account.AccountID, account.Identifier, account.PasswordHash, joinRoles(account.Roles), string(account.Status))
	return err
}

func (p *Provider) GetAccountByIdentifier(ctx context.Context, identifier string) (*idforge.Account, error) {
	row := p.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where lower(identifier) = lower($1)`, identifier)
	return scanAccount(row)
}

func (p *Provider) GetAccountByID(ctx context.Context, accountID string) (*idforge.Account, error) {
	row := p.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id = $1`, accountID)
	return scanAccount(row)
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	res, err := p.db.ExecContext(ctx,
		`update accounts set password_hash = $2, updated_at = now() where id = $1`, accountID, newHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Provider) GetMFAEnrollment(ctx context.Context, accountID string) (*idforge.MFAEnrollment, error) {
	var enrollment idforge.MFAEnrollment
	err := p.db.QueryRowContext(ctx, `
		select secret, enabled, verified, last_used_counter
		from mfa_enrollments where account_id = $1
	`, accountID).Scan(&enrollment.Secret, &enrollment.Enabled, &enrollment.Verified, &enrollment.LastUsedCounter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (p *Provider) SaveMFAEnrollment(ctx context.Context, accountID string, enrollment *idforge.MFAEnrollment) error {
	_, err := p.db.ExecContext(ctx, `
		insert into mfa_enrollments(account_id, secret, enabled, verified, last_used_counter)
		values ($1, $2, $3, $4, $5)
		on conflict (account_id) do update
		set secret = excluded.secret,
		    enabled = excluded.enabled,
		    verified = excluded.verified,
		    last_used_counter = excluded.last_used_counter
	`, accountID, enrollment.Secret, enrollment.Enabled, enrollment.Verified, enrollment.LastUsedCounter)
	return err
}

func (p *Provider) EnableMFAEnrollment(ctx context.Context, accountID string) error {
	res, err := p.db.ExecContext(ctx, `
		update mfa_enrollments set enabled = true, verified = true
		where account_id = $1
	`, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Provider) DisableMFAEnrollment(ctx context.Context, accountID string) error {
	_, err := p.db.ExecContext(ctx,
		`delete from mfa_enrollments where account_id = $1`, accountID)
	return err
}

func (p *Provider) UpdateTOTPLastUsedCounter(ctx context.Context, accountID string, counter int64) error {
	// Zero affected rows means a concurrent verification already
	// advanced the counter past this one; that is not an error here.
	_, err := p.db.ExecContext(ctx, `
		update mfa_enrollments set last_used_counter = $2
		where account_id = $1 and last_used_counter < $2
	`, accountID, counter)
	return err
}

func (p *Provider) ReplaceBackupCodes(ctx context.Context, accountID string, codes []idforge.BackupCodeRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from backup_codes where account_id = $1`, accountID); err != nil {
		return err
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `
			insert into backup_codes(account_id, code_hash, used)
			values ($1, $2, false)
		`, accountID, code.Hash[:]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ConsumeBackupCode marks the matching unused code as used. The
// conditional update makes consumption atomic: two concurrent attempts
// with the same code net exactly one success.
func (p *Provider) ConsumeBackupCode(ctx context.Context, accountID string, hash [32]byte) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		update backup_codes set used = true, used_at = now()
		where account_id = $1 and code_hash = $2 and used = false
	`, accountID, hash[:])
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAccount(row *sql.Row) (*idforge.Account, error) {
	var (
		account idforge.Account
		roles   string
		status  string
	)
	err := row.Scan(&account.AccountID, &account.Identifier, &account.PasswordHash, &roles, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, idforge.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	account.Roles = splitRoles(roles)
	account.Status = idforge.AccountStatus(status)
	return &account, nil
}

// Roles are stored as a comma separated text column; empty means no
// roles assigned.
func splitRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, part)
		}
	}
	return roles
}

func joinRoles(roles []string) string { return strings.Join(roles, ",") }

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return idforge.ErrAccountNotFound
	}
	return nil
}
