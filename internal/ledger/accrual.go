package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// CycleLength is one accrual cycle.
const CycleLength = 24 * time.Hour

type AccrualResult struct {
	Cycles  int64               `json:"cycles"`
	Profit  decimal.Decimal     `json:"profit"`
	Entry   *models.LedgerEntry `json:"entry,omitempty"`
	Account *models.Account     `json:"account"`
}

// Accrue pays every whole cycle elapsed since the last claim. The claim
// clock advances by whole cycles only, so the partial cycle carries over.
func (s *service) Accrue(ctx context.Context, accountID uuid.UUID) (*AccrualResult, error) {
	var res *AccrualResult
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		r, err := s.accrueLocked(ctx, tx, acc, now)
		if err != nil {
			return err
		}
		r.Account = acc
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// accrueLocked applies the catch-up on acc, which must be locked in tx. acc is
// updated in place and saved when a profit is paid.
func (s *service) accrueLocked(ctx context.Context, tx store.Tx, acc *models.Account, now time.Time) (*AccrualResult, error) {
	res := &AccrualResult{Profit: decimal.Zero}
	tier, ok := s.tiers.Lookup(acc.Tier)
	if !ok || !tier.Accrues() {
		return res, nil
	}
	elapsed := now.Sub(acc.LastProfitClaim)
	cycles := int64(elapsed / CycleLength)
	if cycles <= 0 {
		return res, nil
	}

	profit := tier.DailyProfit.Mul(decimal.NewFromInt(cycles))
	acc.Balance = acc.Balance.Add(profit)
	acc.LastProfitClaim = acc.LastProfitClaim.Add(time.Duration(cycles) * CycleLength)
	if err := tx.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	entry := newEntry(acc.ID, models.KindDailyProfit, models.StatusCompleted, profit, now)
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	res.Cycles = cycles
	res.Profit = profit
	res.Entry = entry
	return res, nil
}

// AccrueAll runs the accrual check for every tiered account. Failures are
// logged per account and do not stop the sweep; the first error is returned.
func (s *service) AccrueAll(ctx context.Context) (int, error) {
	accounts, err := s.store.Accounts(ctx, store.AccountFilter{MinTier: 1})
	if err != nil {
		return 0, err
	}
	paid := 0
	var firstErr error
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return paid, err
		}
		res, err := s.Accrue(ctx, a.ID)
		if err != nil {
			entry := s.log.WithError(err).WithField("account_id", a.ID)
			if errors.Is(err, apperr.ErrIntegrity) {
				entry.Error("accrual sweep: integrity violation")
			} else {
				entry.Warn("accrual sweep: account skipped")
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res.Cycles > 0 {
			paid++
			s.log.WithFields(logrus.Fields{
				"account_id": a.ID,
				"cycles":     res.Cycles,
				"profit":     res.Profit.String(),
			}).Debug("daily profit accrued")
		}
	}
	return paid, firstErr
}
