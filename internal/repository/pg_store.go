// Package repository is the PostgreSQL implementation of store.Store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

const txAttempts = 3

// Postgres stores accounts and ledger entries in PostgreSQL. Row locks taken
// with SELECT ... FOR UPDATE serialize writers of the same account or entry.
type Postgres struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, log logrus.FieldLogger) *Postgres {
	return &Postgres{pool: pool, log: log.WithField("component", "store")}
}

var _ store.Store = (*Postgres)(nil)

func (p *Postgres) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, p.pool, "id = $1", id)
}

func (p *Postgres) AccountByMobile(ctx context.Context, mobile string) (*models.Account, error) {
	return getAccount(ctx, p.pool, "mobile = $1", mobile)
}

func (p *Postgres) AccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return getAccount(ctx, p.pool, "referral_code = $1", code)
}

func (p *Postgres) Accounts(ctx context.Context, f store.AccountFilter) ([]*models.Account, error) {
	return listAccounts(ctx, p.pool, `SELECT `+accountColumns+` FROM accounts WHERE tier >= $1 ORDER BY registered_at DESC`, f.MinTier)
}

func (p *Postgres) Referrals(ctx context.Context, referrerID uuid.UUID) ([]*models.Account, error) {
	return listAccounts(ctx, p.pool, `SELECT `+accountColumns+` FROM accounts WHERE referred_by = $1 ORDER BY registered_at`, referrerID)
}

func (p *Postgres) Entry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	return getEntry(ctx, p.pool, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
}

func (p *Postgres) Entries(ctx context.Context, f store.EntryFilter) ([]*models.LedgerEntry, error) {
	return listEntries(ctx, p.pool, f)
}

// WithTx runs fn in a read-committed transaction. Deadlocks and
// serialization failures are retried.
func (p *Postgres) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = p.runTx(ctx, fn)
		if !retryable(err) {
			return err
		}
		p.log.WithError(err).WithField("attempt", attempt).Warn("transaction aborted, retrying")
	}
	return err
}

func (p *Postgres) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return getAccount(ctx, t.tx, "id = $1 FOR UPDATE", id)
}

func (t *pgTx) CreateAccount(ctx context.Context, a *models.Account) error {
	return insertAccount(ctx, t.tx, a)
}

func (t *pgTx) SaveAccount(ctx context.Context, a *models.Account) error {
	return updateAccount(ctx, t.tx, a)
}

func (t *pgTx) LockEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	return getEntry(ctx, t.tx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	return insertEntry(ctx, t.tx, e)
}

// ResolveEntry is a compare-and-set on the pending status.
func (t *pgTx) ResolveEntry(ctx context.Context, id uuid.UUID, status models.EntryStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ledger_entries SET status = $2, resolved_at = $3, version = version + 1
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(apperr.ReasonAlreadyResolved, "entry %s is no longer pending", id)
	}
	return nil
}

// PostgreSQL error codes the store translates.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapError translates constraint violations into the shared error taxonomy.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case "accounts_mobile_key":
			return apperr.Conflict(apperr.ReasonDuplicateMobile, "mobile is already registered")
		case "accounts_referral_code_key":
			return apperr.Conflict(apperr.ReasonDuplicateReferralCode, "referral code is taken")
		}
		return apperr.Conflict("duplicate", "%s", pgErr.Message)
	case codeForeignKeyViolation:
		return apperr.Integrity(apperr.ReasonDanglingAccount, "%s", pgErr.Detail)
	case codeCheckViolation:
		return apperr.Integrity(pgErr.ConstraintName, "%s", pgErr.Message)
	}
	return err
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
