// Package store defines the persistence boundary of the ledger. The ledger
// service owns no global state; it is handed a Store and performs every
// mutation inside Store.WithTx.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/models"
)

// EntryFilter selects ledger entries. Zero values mean "any".
type EntryFilter struct {
	AccountID *uuid.UUID
	Kind      models.EntryKind
	Status    models.EntryStatus
	// CreatedFrom is inclusive, CreatedTo exclusive.
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
}

// Match reports whether e passes the filter. Limit is not applied here.
func (f EntryFilter) Match(e *models.LedgerEntry) bool {
	if f.AccountID != nil && e.AccountID != *f.AccountID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.CreatedFrom.IsZero() && e.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !e.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	return true
}

type AccountFilter struct {
	MinTier int
}

// Reader is the unlocked query side. Results are snapshots owned by the caller.
type Reader interface {
	Account(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AccountByMobile(ctx context.Context, mobile string) (*models.Account, error)
	AccountByReferralCode(ctx context.Context, code string) (*models.Account, error)
	// Accounts returns matching accounts, newest registration first.
	Accounts(ctx context.Context, f AccountFilter) ([]*models.Account, error)
	// Referrals returns the direct invitees of referrerID, oldest first.
	Referrals(ctx context.Context, referrerID uuid.UUID) ([]*models.Account, error)
	Entry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	// Entries returns matching entries, newest first.
	Entries(ctx context.Context, f EntryFilter) ([]*models.LedgerEntry, error)
}

// Tx is one atomic unit of work. Every account or entry that is modified must
// first be obtained through LockAccount/LockEntry (or created) in the same Tx.
// Either all writes of a Tx become visible or none do.
type Tx interface {
	LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) error
	SaveAccount(ctx context.Context, a *models.Account) error

	LockEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	InsertEntry(ctx context.Context, e *models.LedgerEntry) error
	// ResolveEntry moves a pending entry to a terminal status. It fails with
	// a conflict if the entry is no longer pending.
	ResolveEntry(ctx context.Context, id uuid.UUID, status models.EntryStatus, at time.Time) error
}

type Store interface {
	Reader
	// WithTx runs fn in a transaction. fn may be invoked more than once when
	// the implementation retries after a concurrent update, so it must not
	// have side effects outside the Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
