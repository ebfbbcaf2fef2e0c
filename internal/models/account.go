package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankProfile is the payout destination. All three fields are required
// before the first withdrawal.
type BankProfile struct {
	HolderName    string `json:"holder_name"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
}

// Complete reports whether every payout field is filled in.
func (b BankProfile) Complete() bool {
	return b.HolderName != "" && b.BankName != "" && b.AccountNumber != ""
}

type Account struct {
	ID                uuid.UUID       `json:"id"`
	Mobile            string          `json:"mobile"`
	PasswordHash      string          `json:"-"`
	Balance           decimal.Decimal `json:"balance"`
	Tier              int             `json:"tier"`
	Bank              BankProfile     `json:"bank"`
	RegisteredAt      time.Time       `json:"registered_at"`
	LastProfitClaim   time.Time       `json:"last_profit_claim"`
	ReferralCode      string          `json:"referral_code"`
	ReferredBy        *uuid.UUID      `json:"referred_by,omitempty"`
	PendingWithdrawal decimal.Decimal `json:"pending_withdrawal"`
	CompletedTasks    []string        `json:"completed_tasks"`
	LastAdWatch       *time.Time      `json:"last_ad_watch,omitempty"`
	ReferralCount     int             `json:"referral_count"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	TotalWithdrawn    decimal.Decimal `json:"total_withdrawn"`
	Banned            bool            `json:"banned"`

	// Version is bumped on every committed update. Stores use it to detect
	// lost updates.
	Version int64 `json:"-"`
}

// HasCompletedTask reports whether taskID is in the completed-task set.
func (a *Account) HasCompletedTask(taskID string) bool {
	return slices.Contains(a.CompletedTasks, taskID)
}

// Clone returns a deep copy so callers never share slices or pointers with a store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.CompletedTasks = slices.Clone(a.CompletedTasks)
	if a.ReferredBy != nil {
		id := *a.ReferredBy
		cp.ReferredBy = &id
	}
	if a.LastAdWatch != nil {
		t := *a.LastAdWatch
		cp.LastAdWatch = &t
	}
	return &cp
}

// AccountSummary is the reduced view shown in team listings.
type AccountSummary struct {
	ID           uuid.UUID `json:"id"`
	Mobile       string    `json:"mobile"`
	Tier         int       `json:"tier"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Mobile: a.Mobile, Tier: a.Tier, RegisteredAt: a.RegisteredAt}
}
