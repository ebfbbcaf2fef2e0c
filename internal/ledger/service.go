// Package ledger is the balance ledger and incentive engine. It is the only
// code that mutates account balances or ledger entries, and it does so
// exclusively through store.Store transactions.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/catalog"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

// Service is the full operation set of the ledger.
type Service interface {
	OpenAccount(ctx context.Context, reg Registration) (*models.Account, error)
	Snapshot(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	UpdateBankProfile(ctx context.Context, accountID uuid.UUID, bank models.BankProfile) (*models.Account, error)

	Tap(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	PurchaseTier(ctx context.Context, accountID uuid.UUID, level int) (*models.Account, error)
	Accrue(ctx context.Context, accountID uuid.UUID) (*AccrualResult, error)
	AccrueAll(ctx context.Context) (int, error)
	ClaimTask(ctx context.Context, accountID uuid.UUID, taskID string) (*models.LedgerEntry, error)

	SubmitDeposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, proofRef string) (*models.LedgerEntry, error)
	RequestWithdrawal(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*WithdrawalReceipt, error)
	Approve(ctx context.Context, actor string, entryID uuid.UUID) (*models.LedgerEntry, error)
	Reject(ctx context.Context, actor string, entryID uuid.UUID) (*models.LedgerEntry, error)

	SetBalance(ctx context.Context, actor string, accountID uuid.UUID, balance decimal.Decimal) (*models.Account, error)
	ToggleBan(ctx context.Context, actor string, accountID uuid.UUID) (*models.Account, error)

	Accounts(ctx context.Context) ([]*models.Account, error)
	Entries(ctx context.Context, f store.EntryFilter) ([]*models.LedgerEntry, error)
	Stats(ctx context.Context, day time.Time) (*Stats, error)
	Team(ctx context.Context, accountID uuid.UUID) (*Team, error)

	Tiers() []catalog.Tier
	// NextTier is the lowest purchasable tier above level.
	NextTier(level int) (catalog.Tier, bool)
	Tasks() []catalog.Task
}

// Config holds the process-wide economic constants.
type Config struct {
	RegistrationBonus     decimal.Decimal
	MinWithdrawal         decimal.Decimal
	WithdrawalFeeRate     decimal.Decimal
	ReferralTaskThreshold int
}

func DefaultConfig() Config {
	return Config{
		RegistrationBonus:     decimal.NewFromInt(100),
		MinWithdrawal:         decimal.NewFromInt(300),
		WithdrawalFeeRate:     decimal.RequireFromString("0.20"),
		ReferralTaskThreshold: 20,
	}
}

type Option func(*service)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithCatalog(tiers *catalog.Tiers, tasks *catalog.Tasks) Option {
	return func(s *service) {
		s.tiers = tiers
		s.tasks = tasks
	}
}

type service struct {
	store store.Store
	cfg   Config
	tiers *catalog.Tiers
	tasks *catalog.Tasks
	now   func() time.Time
	log   logrus.FieldLogger
}

// NewService wires the engine to a store. log may be nil.
func NewService(st store.Store, cfg Config, log logrus.FieldLogger, opts ...Option) *service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &service{
		store: st,
		cfg:   cfg,
		tiers: catalog.DefaultTiers(),
		tasks: catalog.DefaultTasks(),
		now:   time.Now,
		log:   log.WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Service = (*service)(nil)

func (s *service) Tiers() []catalog.Tier { return s.tiers.All() }

func (s *service) NextTier(level int) (catalog.Tier, bool) { return s.tiers.NextPurchasable(level) }

func (s *service) Tasks() []catalog.Task { return s.tasks.All() }

func (s *service) clock() time.Time { return s.now().UTC() }

func (s *service) Snapshot(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
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
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Accounts(ctx context.Context) ([]*models.Account, error) {
	return s.store.Accounts(ctx, store.AccountFilter{})
}

func (s *service) Entries(ctx context.Context, f store.EntryFilter) ([]*models.LedgerEntry, error) {
	return s.store.Entries(ctx, f)
}

func newEntry(accountID uuid.UUID, kind models.EntryKind, status models.EntryStatus, amount decimal.Decimal, at time.Time) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Kind:      kind,
		Status:    status,
		CreatedAt: at,
	}
}
