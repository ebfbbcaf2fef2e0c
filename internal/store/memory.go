package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
)

// errStale signals that a record read by a Tx changed before commit.
var errStale = errors.New("stale read")

// Memory is an in-process Store. Transactions run optimistically against
// private copies and commit under a single lock after checking that every
// record they read still carries the version they saw. A stale Tx is rerun,
// so operations on different accounts never block each other while the
// transaction body runs.
type Memory struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]*models.Account
	byMobile   map[string]uuid.UUID
	byCode     map[string]uuid.UUID
	entries    map[uuid.UUID]*models.LedgerEntry
	entryOrder []uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[uuid.UUID]*models.Account),
		byMobile: make(map[string]uuid.UUID),
		byCode:   make(map[string]uuid.UUID),
		entries:  make(map[uuid.UUID]*models.LedgerEntry),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Account(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, accountNotFound(id)
	}
	return a.Clone(), nil
}

func (m *Memory) AccountByMobile(_ context.Context, mobile string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byMobile[mobile]
	if !ok {
		return nil, apperr.NotFound(apperr.ReasonAccountNotFound, "no account with mobile %s", mobile)
	}
	return m.accounts[id].Clone(), nil
}

func (m *Memory) AccountByReferralCode(_ context.Context, code string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, apperr.NotFound(apperr.ReasonAccountNotFound, "no account with referral code %s", code)
	}
	return m.accounts[id].Clone(), nil
}

func (m *Memory) Accounts(_ context.Context, f AccountFilter) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*models.Account
	for _, a := range m.accounts {
		if a.Tier >= f.MinTier {
			list = append(list, a.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RegisteredAt.After(list[j].RegisteredAt) })
	return list, nil
}

func (m *Memory) Referrals(_ context.Context, referrerID uuid.UUID) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*models.Account
	for _, a := range m.accounts {
		if a.ReferredBy != nil && *a.ReferredBy == referrerID {
			list = append(list, a.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RegisteredAt.Before(list[j].RegisteredAt) })
	return list, nil
}

func (m *Memory) Entry(_ context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, entryNotFound(id)
	}
	return e.Clone(), nil
}

func (m *Memory) Entries(_ context.Context, f EntryFilter) ([]*models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*models.LedgerEntry
	for i := len(m.entryOrder) - 1; i >= 0; i-- {
		e := m.entries[m.entryOrder[i]]
		if f.Match(e) {
			list = append(list, e.Clone())
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list, nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := newMemTx(m)
		if err := fn(tx); err != nil {
			return err
		}
		err := m.commit(tx)
		if errors.Is(err, errStale) {
			runtime.Gosched()
			continue
		}
		return err
	}
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, v := range tx.accountReads {
		if cur, ok := m.accounts[id]; !ok || cur.Version != v {
			return errStale
		}
	}
	for id, v := range tx.entryReads {
		if cur, ok := m.entries[id]; !ok || cur.Version != v {
			return errStale
		}
	}
	for _, id := range tx.created {
		a := tx.accounts[id]
		if _, ok := m.accounts[id]; ok {
			return apperr.Conflict(apperr.ReasonDuplicateMobile, "account %s already exists", id)
		}
		if _, ok := m.byMobile[a.Mobile]; ok {
			return apperr.Conflict(apperr.ReasonDuplicateMobile, "mobile %s is already registered", a.Mobile)
		}
		if _, ok := m.byCode[a.ReferralCode]; ok {
			return apperr.Conflict(apperr.ReasonDuplicateReferralCode, "referral code %s is taken", a.ReferralCode)
		}
	}
	for _, id := range tx.inserted {
		e := tx.entries[id]
		if _, ok := m.accounts[e.AccountID]; !ok {
			if _, created := tx.accounts[e.AccountID]; !created {
				return apperr.Integrity(apperr.ReasonDanglingAccount, "entry %s references unknown account %s", e.ID, e.AccountID)
			}
		}
	}

	for id := range tx.dirtyAccounts {
		a := tx.accounts[id]
		if cur, ok := m.accounts[id]; ok {
			a.Version = cur.Version + 1
		} else {
			a.Version = 1
			m.byMobile[a.Mobile] = id
			m.byCode[a.ReferralCode] = id
		}
		m.accounts[id] = a
	}
	for _, id := range tx.inserted {
		m.entryOrder = append(m.entryOrder, id)
	}
	for id := range tx.dirtyEntries {
		e := tx.entries[id]
		if cur, ok := m.entries[id]; ok {
			e.Version = cur.Version + 1
		} else {
			e.Version = 1
		}
		m.entries[id] = e
	}
	return nil
}

type memTx struct {
	m             *Memory
	accountReads  map[uuid.UUID]int64
	entryReads    map[uuid.UUID]int64
	accounts      map[uuid.UUID]*models.Account
	entries       map[uuid.UUID]*models.LedgerEntry
	dirtyAccounts map[uuid.UUID]struct{}
	dirtyEntries  map[uuid.UUID]struct{}
	created       []uuid.UUID
	inserted      []uuid.UUID
}

func newMemTx(m *Memory) *memTx {
	return &memTx{
		m:             m,
		accountReads:  make(map[uuid.UUID]int64),
		entryReads:    make(map[uuid.UUID]int64),
		accounts:      make(map[uuid.UUID]*models.Account),
		entries:       make(map[uuid.UUID]*models.LedgerEntry),
		dirtyAccounts: make(map[uuid.UUID]struct{}),
		dirtyEntries:  make(map[uuid.UUID]struct{}),
	}
}

func (tx *memTx) LockAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if a, ok := tx.accounts[id]; ok {
		return a.Clone(), nil
	}
	tx.m.mu.RLock()
	a, ok := tx.m.accounts[id]
	if ok {
		a = a.Clone()
	}
	tx.m.mu.RUnlock()
	if !ok {
		return nil, accountNotFound(id)
	}
	tx.accountReads[id] = a.Version
	tx.accounts[id] = a
	return a.Clone(), nil
}

func (tx *memTx) CreateAccount(_ context.Context, a *models.Account) error {
	if _, ok := tx.accounts[a.ID]; ok {
		return apperr.Conflict(apperr.ReasonDuplicateMobile, "account %s already exists", a.ID)
	}
	for _, id := range tx.created {
		other := tx.accounts[id]
		if other.Mobile == a.Mobile {
			return apperr.Conflict(apperr.ReasonDuplicateMobile, "mobile %s is already registered", a.Mobile)
		}
		if other.ReferralCode == a.ReferralCode {
			return apperr.Conflict(apperr.ReasonDuplicateReferralCode, "referral code %s is taken", a.ReferralCode)
		}
	}
	tx.accounts[a.ID] = a.Clone()
	tx.dirtyAccounts[a.ID] = struct{}{}
	tx.created = append(tx.created, a.ID)
	return nil
}

func (tx *memTx) SaveAccount(_ context.Context, a *models.Account) error {
	if _, ok := tx.accounts[a.ID]; !ok {
		return fmt.Errorf("save account %s: not locked in this transaction", a.ID)
	}
	tx.accounts[a.ID] = a.Clone()
	tx.dirtyAccounts[a.ID] = struct{}{}
	return nil
}

func (tx *memTx) LockEntry(_ context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	if e, ok := tx.entries[id]; ok {
		return e.Clone(), nil
	}
	tx.m.mu.RLock()
	e, ok := tx.m.entries[id]
	if ok {
		e = e.Clone()
	}
	tx.m.mu.RUnlock()
	if !ok {
		return nil, entryNotFound(id)
	}
	tx.entryReads[id] = e.Version
	tx.entries[id] = e
	return e.Clone(), nil
}

func (tx *memTx) InsertEntry(_ context.Context, e *models.LedgerEntry) error {
	if _, ok := tx.entries[e.ID]; ok {
		return fmt.Errorf("insert entry %s: duplicate id", e.ID)
	}
	tx.entries[e.ID] = e.Clone()
	tx.dirtyEntries[e.ID] = struct{}{}
	tx.inserted = append(tx.inserted, e.ID)
	return nil
}

func (tx *memTx) ResolveEntry(_ context.Context, id uuid.UUID, status models.EntryStatus, at time.Time) error {
	e, ok := tx.entries[id]
	if !ok {
		return fmt.Errorf("resolve entry %s: not locked in this transaction", id)
	}
	if e.Status != models.StatusPending {
		return apperr.Conflict(apperr.ReasonAlreadyResolved, "entry %s is already %s", id, e.Status)
	}
	e.Status = status
	resolvedAt := at
	e.ResolvedAt = &resolvedAt
	tx.dirtyEntries[id] = struct{}{}
	return nil
}

func accountNotFound(id uuid.UUID) error {
	return apperr.NotFound(apperr.ReasonAccountNotFound, "account %s not found", id)
}

func entryNotFound(id uuid.UUID) error {
	return apperr.NotFound(apperr.ReasonEntryNotFound, "ledger entry %s not found", id)
}
