package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

var withdrawalStep = decimal.NewFromInt(100)

// WithdrawalReceipt is returned to the requester. Net is what is expected to
// be paid out externally; the entry amount stays gross.
type WithdrawalReceipt struct {
	Entry   *models.LedgerEntry `json:"entry"`
	Fee     decimal.Decimal     `json:"fee"`
	Net     decimal.Decimal     `json:"net"`
	Balance decimal.Decimal     `json:"balance"`
}

// RequestWithdrawal debits the balance into the pending hold and records a
// pending withdrawal entry.
func (s *service) RequestWithdrawal(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*WithdrawalReceipt, error) {
	var out *WithdrawalReceipt
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
		if err := s.checkWithdrawal(acc, amount); err != nil {
			return err
		}

		fee := amount.Mul(s.cfg.WithdrawalFeeRate)
		net := amount.Sub(fee)
		acc.Balance = acc.Balance.Sub(amount)
		acc.PendingWithdrawal = acc.PendingWithdrawal.Add(amount)
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}

		entry := newEntry(acc.ID, models.KindWithdrawal, models.StatusPending, amount, now)
		entry.Fee = &fee
		entry.Net = &net
		out = &WithdrawalReceipt{Entry: entry, Fee: fee, Net: net, Balance: acc.Balance}
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"entry_id":   out.Entry.ID,
		"amount":     amount.String(),
		"net":        out.Net.String(),
	}).Info("withdrawal requested")
	return out, nil
}

// checkWithdrawal applies the request rules in their fixed order so the
// first failing rule decides the reason.
func (s *service) checkWithdrawal(acc *models.Account, amount decimal.Decimal) error {
	if amount.LessThan(s.cfg.MinWithdrawal) {
		return apperr.Validation(apperr.ReasonBelowMinimum, "minimum withdrawal is %s", s.cfg.MinWithdrawal)
	}
	if !amount.Mod(withdrawalStep).IsZero() {
		return apperr.Validation(apperr.ReasonNotMultipleOf100, "amount must be a multiple of %s", withdrawalStep)
	}
	if amount.GreaterThan(acc.Balance) {
		return apperr.Validation(apperr.ReasonInsufficientBalance, "insufficient balance")
	}
	if acc.Tier < 1 {
		return apperr.Validation(apperr.ReasonTierRequired, "purchase a tier before withdrawing")
	}
	if !acc.Bank.Complete() {
		return apperr.Validation(apperr.ReasonBankProfileMissing, "complete your bank profile before withdrawing")
	}
	return nil
}
