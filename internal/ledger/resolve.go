package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// Approve completes a pending deposit or withdrawal.
func (s *service) Approve(ctx context.Context, actor string, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.resolve(ctx, actor, entryID, models.StatusCompleted)
}

// Reject fails a pending deposit or withdrawal.
func (s *service) Reject(ctx context.Context, actor string, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.resolve(ctx, actor, entryID, models.StatusFailed)
}

func (s *service) resolve(ctx context.Context, actor string, entryID uuid.UUID, status models.EntryStatus) (*models.LedgerEntry, error) {
	var (
		out         *models.LedgerEntry
		commissions int
	)
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		commissions = 0
		entry, err := tx.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.Kind.Resolvable() {
			return apperr.Validation(apperr.ReasonNotResolvable, "%s entries cannot be resolved", entry.Kind)
		}
		if entry.Status != models.StatusPending {
			return apperr.Conflict(apperr.ReasonAlreadyResolved, "entry %s is already %s", entry.ID, entry.Status)
		}
		owner, err := tx.LockAccount(ctx, entry.AccountID)
		if err != nil {
			return integrityIfMissing(err, entry.AccountID)
		}

		switch entry.Kind {
		case models.KindDeposit:
			if status == models.StatusCompleted {
				n, err := s.completeDeposit(ctx, tx, owner, entry, now)
				if err != nil {
					return err
				}
				commissions = n
			}
		case models.KindWithdrawal:
			owner.PendingWithdrawal = floorZero(owner.PendingWithdrawal.Sub(entry.Amount))
			if status == models.StatusCompleted {
				owner.TotalWithdrawn = owner.TotalWithdrawn.Add(entry.Amount)
			} else {
				owner.Balance = owner.Balance.Add(entry.Amount)
			}
			if err := tx.SaveAccount(ctx, owner); err != nil {
				return err
			}
		}

		if err := tx.ResolveEntry(ctx, entry.ID, status, now); err != nil {
			return err
		}
		resolvedAt := now
		entry.Status = status
		entry.ResolvedAt = &resolvedAt
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"actor":       actor,
		"entry_id":    out.ID,
		"account_id":  out.AccountID,
		"kind":        out.Kind,
		"status":      out.Status,
		"amount":      out.Amount.String(),
		"commissions": commissions,
	}).Info("ledger entry resolved")
	return out, nil
}

// completeDeposit credits the depositor and pays the referral cascade. All
// credits are planned before any is applied.
func (s *service) completeDeposit(ctx context.Context, tx store.Tx, owner *models.Account, entry *models.LedgerEntry, now time.Time) (int, error) {
	plan, err := planCascade(ctx, tx, owner, entry.Amount)
	if err != nil {
		return 0, err
	}

	owner.Balance = owner.Balance.Add(entry.Amount)
	owner.TotalInvested = owner.TotalInvested.Add(entry.Amount)
	if err := tx.SaveAccount(ctx, owner); err != nil {
		return 0, err
	}
	for _, c := range plan {
		c.referrer.Balance = c.referrer.Balance.Add(c.amount)
		if err := tx.SaveAccount(ctx, c.referrer); err != nil {
			return 0, err
		}
		ce := newEntry(c.referrer.ID, models.KindReferralCommission, models.StatusCompleted, c.amount, now)
		ce.Reference = commissionReference(c.level, entry.Reference)
		if err := tx.InsertEntry(ctx, ce); err != nil {
			return 0, err
		}
	}
	return len(plan), nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
