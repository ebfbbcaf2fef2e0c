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

// SetBalance overwrites an account balance. No ledger entry is written; the
// audit log line is the record.
func (s *service) SetBalance(ctx context.Context, actor string, accountID uuid.UUID, balance decimal.Decimal) (*models.Account, error) {
	if balance.IsNegative() {
		return nil, apperr.Validation(apperr.ReasonAmountInvalid, "balance cannot be negative")
	}
	var (
		out *models.Account
		old decimal.Decimal
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		old = acc.Balance
		acc.Balance = balance
		out = acc
		return tx.SaveAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"actor":       actor,
		"account_id":  accountID,
		"old_balance": old.String(),
		"new_balance": balance.String(),
	}).Warn("balance force-set")
	return out, nil
}

func (s *service) ToggleBan(ctx context.Context, actor string, accountID uuid.UUID) (*models.Account, error) {
	var out *models.Account
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		acc.Banned = !acc.Banned
		out = acc
		return tx.SaveAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"actor":      actor,
		"account_id": accountID,
		"banned":     out.Banned,
	}).Warn("account ban toggled")
	return out, nil
}
