package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// Stats are the administrator dashboard aggregates.
type Stats struct {
	Day              string          `json:"day"`
	DailyDeposits    decimal.Decimal `json:"daily_deposits"`
	PendingLiability decimal.Decimal `json:"pending_liability"`
	FeeRevenue       decimal.Decimal `json:"fee_revenue"`
	Accounts         int             `json:"accounts"`
}

// Stats reports completed deposits created on the UTC day containing day,
// the total of pending withdrawals and the fees earned on completed ones.
func (s *service) Stats(ctx context.Context, day time.Time) (*Stats, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	deposits, err := s.store.Entries(ctx, store.EntryFilter{
		Kind:        models.KindDeposit,
		Status:      models.StatusCompleted,
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		return nil, err
	}
	pending, err := s.store.Entries(ctx, store.EntryFilter{Kind: models.KindWithdrawal, Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	completed, err := s.store.Entries(ctx, store.EntryFilter{Kind: models.KindWithdrawal, Status: models.StatusCompleted})
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.Accounts(ctx, store.AccountFilter{})
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Day:              from.Format(time.DateOnly),
		DailyDeposits:    sum(deposits),
		PendingLiability: sum(pending),
		FeeRevenue:       sum(completed).Mul(s.cfg.WithdrawalFeeRate),
		Accounts:         len(accounts),
	}
	return st, nil
}

func sum(entries []*models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
