package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
)

func seed(t *testing.T, m *Memory, mobile, code string, balance int64) *models.Account {
	t.Helper()
	a := &models.Account{
		ID:           uuid.New(),
		Mobile:       mobile,
		ReferralCode: code,
		Balance:      decimal.NewFromInt(balance),
		RegisteredAt: time.Now(),
	}
	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		return tx.CreateAccount(context.Background(), a)
	}))
	return a
}

func TestCreateAccountUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seed(t, m, "0711111111", "AAAAAA", 0)

	err := m.WithTx(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, &models.Account{ID: uuid.New(), Mobile: "0711111111", ReferralCode: "BBBBBB"})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, apperr.ReasonDuplicateMobile, apperr.ReasonOf(err))

	err = m.WithTx(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, &models.Account{ID: uuid.New(), Mobile: "0722222222", ReferralCode: "AAAAAA"})
	})
	assert.Equal(t, apperr.ReasonDuplicateReferralCode, apperr.ReasonOf(err))

	got, err := m.AccountByReferralCode(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "0711111111", got.Mobile)
}

func TestFailedTxLeavesNoTrace(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seed(t, m, "0711111111", "AAAAAA", 100)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		acc.Balance = decimal.NewFromInt(999)
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestResolveEntryOnlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seed(t, m, "0711111111", "AAAAAA", 0)
	entry := &models.LedgerEntry{ID: uuid.New(), AccountID: a.ID, Kind: models.KindDeposit, Status: models.StatusPending, Amount: decimal.NewFromInt(5)}
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error { return tx.InsertEntry(ctx, entry) }))

	resolve := func(status models.EntryStatus) error {
		return m.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.LockEntry(ctx, entry.ID); err != nil {
				return err
			}
			return tx.ResolveEntry(ctx, entry.ID, status, time.Now())
		})
	}
	require.NoError(t, resolve(models.StatusCompleted))
	err := resolve(models.StatusFailed)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	got, err := m.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestInsertEntryForUnknownAccount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.WithTx(ctx, func(tx Tx) error {
		return tx.InsertEntry(ctx, &models.LedgerEntry{ID: uuid.New(), AccountID: uuid.New(), Kind: models.KindTaskReward})
	})
	assert.True(t, errors.Is(err, apperr.ErrIntegrity))
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seed(t, m, "0711111111", "AAAAAA", 0)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithTx(ctx, func(tx Tx) error {
				acc, err := tx.LockAccount(ctx, a.ID)
				if err != nil {
					return err
				}
				acc.Balance = acc.Balance.Add(decimal.NewFromInt(1))
				return tx.SaveAccount(ctx, acc)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(workers)), "balance %s", got.Balance)
}

func TestEntriesFilterAndOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seed(t, m, "0711111111", "AAAAAA", 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, kind := range []models.EntryKind{models.KindDeposit, models.KindDailyProfit, models.KindDeposit} {
		e := &models.LedgerEntry{ID: uuid.New(), AccountID: a.ID, Kind: kind, Status: models.StatusCompleted, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, m.WithTx(ctx, func(tx Tx) error { return tx.InsertEntry(ctx, e) }))
	}

	deposits, err := m.Entries(ctx, EntryFilter{Kind: models.KindDeposit})
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.True(t, deposits[0].CreatedAt.After(deposits[1].CreatedAt), "newest first")

	window, err := m.Entries(ctx, EntryFilter{CreatedFrom: base.Add(time.Hour), CreatedTo: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, models.KindDailyProfit, window[0].Kind)

	limited, err := m.Entries(ctx, EntryFilter{AccountID: &a.ID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
