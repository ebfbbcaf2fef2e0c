package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Money columns travel as text so no decimal codec has to be registered on
// the pool.
const accountColumns = `id, mobile, password_hash, balance::text, tier,
	bank_holder_name, bank_name, bank_account, registered_at, last_profit_claim,
	referral_code, referred_by, pending_withdrawal::text, completed_tasks, last_ad_watch,
	referral_count, total_invested::text, total_withdrawn::text, banned, version`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a                                     models.Account
		balance, pending, invested, withdrawn string
	)
	err := row.Scan(&a.ID, &a.Mobile, &a.PasswordHash, &balance, &a.Tier,
		&a.Bank.HolderName, &a.Bank.BankName, &a.Bank.AccountNumber, &a.RegisteredAt, &a.LastProfitClaim,
		&a.ReferralCode, &a.ReferredBy, &pending, &a.CompletedTasks, &a.LastAdWatch,
		&a.ReferralCount, &invested, &withdrawn, &a.Banned, &a.Version)
	if err != nil {
		return nil, err
	}
	if err := parseDecimals(
		decimalField{balance, &a.Balance},
		decimalField{pending, &a.PendingWithdrawal},
		decimalField{invested, &a.TotalInvested},
		decimalField{withdrawn, &a.TotalWithdrawn},
	); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.RegisteredAt = a.RegisteredAt.UTC()
	a.LastProfitClaim = a.LastProfitClaim.UTC()
	if a.LastAdWatch != nil {
		t := a.LastAdWatch.UTC()
		a.LastAdWatch = &t
	}
	if a.CompletedTasks == nil {
		a.CompletedTasks = []string{}
	}
	return &a, nil
}

func getAccount(ctx context.Context, q querier, where string, arg any) (*models.Account, error) {
	a, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.ReasonAccountNotFound, "account not found")
	}
	return a, err
}

func listAccounts(ctx context.Context, q querier, query string, args ...any) ([]*models.Account, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func insertAccount(ctx context.Context, q querier, a *models.Account) error {
	_, err := q.Exec(ctx, `
		INSERT INTO accounts (id, mobile, password_hash, balance, tier,
			bank_holder_name, bank_name, bank_account, registered_at, last_profit_claim,
			referral_code, referred_by, pending_withdrawal, completed_tasks, last_ad_watch,
			referral_count, total_invested, total_withdrawn, banned, version)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15, $16, $17::numeric, $18::numeric, $19, 1)
	`, a.ID, a.Mobile, a.PasswordHash, a.Balance.String(), a.Tier,
		a.Bank.HolderName, a.Bank.BankName, a.Bank.AccountNumber, a.RegisteredAt, a.LastProfitClaim,
		a.ReferralCode, a.ReferredBy, a.PendingWithdrawal.String(), tasksOrEmpty(a.CompletedTasks), a.LastAdWatch,
		a.ReferralCount, a.TotalInvested.String(), a.TotalWithdrawn.String(), a.Banned)
	if err != nil {
		return mapError(err)
	}
	a.Version = 1
	return nil
}

// updateAccount writes every mutable column. The row must be locked by the
// calling transaction.
func updateAccount(ctx context.Context, q querier, a *models.Account) error {
	var version int64
	err := q.QueryRow(ctx, `
		UPDATE accounts SET balance = $2::numeric, tier = $3,
			bank_holder_name = $4, bank_name = $5, bank_account = $6,
			last_profit_claim = $7, pending_withdrawal = $8::numeric, completed_tasks = $9,
			last_ad_watch = $10, referral_count = $11, total_invested = $12::numeric,
			total_withdrawn = $13::numeric, banned = $14, password_hash = $15,
			version = version + 1
		WHERE id = $1
		RETURNING version
	`, a.ID, a.Balance.String(), a.Tier,
		a.Bank.HolderName, a.Bank.BankName, a.Bank.AccountNumber,
		a.LastProfitClaim, a.PendingWithdrawal.String(), tasksOrEmpty(a.CompletedTasks),
		a.LastAdWatch, a.ReferralCount, a.TotalInvested.String(),
		a.TotalWithdrawn.String(), a.Banned, a.PasswordHash).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(apperr.ReasonAccountNotFound, "account %s not found", a.ID)
	}
	if err != nil {
		return mapError(err)
	}
	a.Version = version
	return nil
}

func tasksOrEmpty(tasks []string) []string {
	if tasks == nil {
		return []string{}
	}
	return tasks
}

type decimalField struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
