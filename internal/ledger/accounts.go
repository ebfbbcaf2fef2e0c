package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

var mobilePattern = regexp.MustCompile(`^07\d{8}$`)

const (
	referralCodeLength   = 6
	referralCodeAttempts = 5
	codeAlphabet         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Registration is the input for OpenAccount. PasswordHash is produced by the
// auth layer; the ledger never sees the plain credential.
type Registration struct {
	Mobile       string
	PasswordHash string
	InviteCode   string
}

// ValidMobile reports whether mobile has the 07XXXXXXXX shape.
func ValidMobile(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// OpenAccount creates an account with the registration bonus. An unknown
// invite code is ignored. The referrer, if any, gets its referral count bumped
// in the same transaction.
func (s *service) OpenAccount(ctx context.Context, reg Registration) (*models.Account, error) {
	if !ValidMobile(reg.Mobile) {
		return nil, apperr.Validation(apperr.ReasonInvalidMobile, "mobile must use the 07XXXXXXXX format")
	}

	var referrerID *uuid.UUID
	if code := strings.ToUpper(strings.TrimSpace(reg.InviteCode)); code != "" {
		ref, err := s.store.AccountByReferralCode(ctx, code)
		switch {
		case err == nil:
			id := ref.ID
			referrerID = &id
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return nil, fmt.Errorf("resolve invite code: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		code, err := newReferralCode()
		if err != nil {
			return nil, err
		}
		now := s.clock()
		acc := &models.Account{
			ID:                uuid.New(),
			Mobile:            reg.Mobile,
			PasswordHash:      reg.PasswordHash,
			Balance:           s.cfg.RegistrationBonus,
			RegisteredAt:      now,
			LastProfitClaim:   now,
			ReferralCode:      code,
			ReferredBy:        referrerID,
			PendingWithdrawal: decimal.Zero,
			CompletedTasks:    []string{},
			TotalInvested:     decimal.Zero,
			TotalWithdrawn:    decimal.Zero,
		}
		err = s.store.WithTx(ctx, func(tx store.Tx) error {
			if referrerID != nil {
				ref, err := tx.LockAccount(ctx, *referrerID)
				if err != nil {
					return integrityIfMissing(err, *referrerID)
				}
				ref.ReferralCount++
				if err := tx.SaveAccount(ctx, ref); err != nil {
					return err
				}
			}
			return tx.CreateAccount(ctx, acc)
		})
		if apperr.HasReason(err, apperr.ReasonDuplicateReferralCode) && attempt+1 < referralCodeAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{
			"account_id":  acc.ID,
			"referred_by": referrerID,
		}).Info("account opened")
		return acc, nil
	}
}

func (s *service) UpdateBankProfile(ctx context.Context, accountID uuid.UUID, bank models.BankProfile) (*models.Account, error) {
	bank = models.BankProfile{
		HolderName:    strings.TrimSpace(bank.HolderName),
		BankName:      strings.TrimSpace(bank.BankName),
		AccountNumber: strings.TrimSpace(bank.AccountNumber),
	}
	if !bank.Complete() {
		return nil, apperr.Validation(apperr.ReasonBankProfileMissing, "holder name, bank name and account number are required")
	}
	var out *models.Account
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		acc.Bank = bank
		out = acc
		return tx.SaveAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newReferralCode() (string, error) {
	return randomCode(referralCodeLength)
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// integrityIfMissing turns a not-found for an account that must exist into an
// integrity violation.
func integrityIfMissing(err error, id uuid.UUID) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Integrity(apperr.ReasonDanglingAccount, "account %s is referenced but does not exist", id)
	}
	return err
}
