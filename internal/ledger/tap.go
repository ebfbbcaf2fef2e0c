package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// Tap credits the tier's tap reward. Taps are not individually recorded in
// the ledger.
func (s *service) Tap(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var out *models.Account
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Banned {
			return apperr.Validation(apperr.ReasonAccountBanned, "account is banned")
		}
		if _, err := s.accrueLocked(ctx, tx, acc, now); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(s.tiers.TapReward(acc.Tier))
		out = acc
		return tx.SaveAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
