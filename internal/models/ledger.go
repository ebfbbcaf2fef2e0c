package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind is the kind of balance-affecting event a ledger entry records.
type EntryKind string

const (
	KindDeposit            EntryKind = "deposit"
	KindWithdrawal         EntryKind = "withdrawal"
	KindReferralCommission EntryKind = "referral_commission"
	KindTaskReward         EntryKind = "task_reward"
	KindDailyProfit        EntryKind = "daily_profit"
	KindInvestment         EntryKind = "investment"
)

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindReferralCommission, KindTaskReward, KindDailyProfit, KindInvestment:
		return true
	}
	return false
}

// Resolvable reports whether entries of this kind are created pending and
// wait for an administrator decision.
func (k EntryKind) Resolvable() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// EntryStatus is the lifecycle state. pending -> completed | failed, both terminal.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

func (s EntryStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

type LedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	// Fee and Net are only set on withdrawals. Amount stays gross.
	Fee        *decimal.Decimal `json:"fee,omitempty"`
	Net        *decimal.Decimal `json:"net,omitempty"`
	Kind       EntryKind        `json:"kind"`
	Status     EntryStatus      `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	ProofRef   string           `json:"proof_ref,omitempty"`
	Reference  string           `json:"reference,omitempty"`

	Version int64 `json:"-"`
}

func (e *LedgerEntry) Clone() *LedgerEntry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Fee != nil {
		f := *e.Fee
		cp.Fee = &f
	}
	if e.Net != nil {
		n := *e.Net
		cp.Net = &n
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
