package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// PurchaseTier upgrades the account to level, paying the tier's investment
// from the balance. Profit owed under the old tier is settled first; the new
// tier's accrual clock starts at the purchase instant.
func (s *service) PurchaseTier(ctx context.Context, accountID uuid.UUID, level int) (*models.Account, error) {
	tier, ok := s.tiers.Lookup(level)
	if !ok {
		return nil, apperr.NotFound(apperr.ReasonTierNotFound, "tier %d does not exist", level)
	}
	var out *models.Account
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if _, err := s.accrueLocked(ctx, tx, acc, now); err != nil {
			return err
		}
		if level <= acc.Tier {
			return apperr.Conflict(apperr.ReasonTierNotAboveCurrent, "tier %d is not above current tier %d", level, acc.Tier)
		}
		if !tier.Purchasable() {
			return apperr.Validation(apperr.ReasonTierUnavailable, "tier %d is not available yet", level)
		}
		if acc.Balance.LessThan(tier.Investment) {
			return apperr.Validation(apperr.ReasonInsufficientBalance, "tier %d costs %s, balance is %s", level, tier.Investment, acc.Balance)
		}

		acc.Balance = acc.Balance.Sub(tier.Investment)
		acc.Tier = level
		acc.TotalInvested = acc.TotalInvested.Add(tier.Investment)
		acc.LastProfitClaim = now
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		out = acc
		return tx.InsertEntry(ctx, newEntry(acc.ID, models.KindInvestment, models.StatusCompleted, tier.Investment, now))
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("account_id", accountID).WithField("tier", level).Info("tier purchased")
	return out, nil
}
