package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

const depositRefLength = 9

// SubmitDeposit records a pending deposit awaiting administrator review. The
// balance is not touched until approval.
func (s *service) SubmitDeposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, proofRef string) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation(apperr.ReasonAmountInvalid, "deposit amount must be positive")
	}
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return nil, apperr.Validation(apperr.ReasonProofRequired, "a proof of payment is required")
	}

	var out *models.LedgerEntry
	now := s.clock()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Banned {
			return apperr.Validation(apperr.ReasonAccountBanned, "account is banned")
		}
		ref, err := depositReference()
		if err != nil {
			return err
		}
		entry := newEntry(acc.ID, models.KindDeposit, models.StatusPending, amount, now)
		entry.ProofRef = proofRef
		entry.Reference = ref
		out = entry
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"entry_id":   out.ID,
		"amount":     amount.String(),
		"reference":  out.Reference,
	}).Info("deposit submitted")
	return out, nil
}

func depositReference() (string, error) {
	code, err := randomCode(depositRefLength)
	if err != nil {
		return "", err
	}
	return "DEP-" + code, nil
}
