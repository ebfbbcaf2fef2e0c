package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

func TestPgx5URL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/app?sslmode=disable": "pgx5://u:p@db:5432/app?sslmode=disable",
		"postgresql://db/app":                        "pgx5://db/app",
		"pgx5://db/app":                              "pgx5://db/app",
	}
	for in, want := range tests {
		assert.Equal(t, want, pgx5URL(in), in)
	}
}

func TestBuildEntryQuery(t *testing.T) {
	id := uuid.New()
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	q, args := buildEntryQuery(store.EntryFilter{
		AccountID:   &id,
		Kind:        models.KindDeposit,
		Status:      models.StatusCompleted,
		CreatedFrom: from,
		CreatedTo:   from.AddDate(0, 0, 1),
		Limit:       20,
	})
	assert.Contains(t, q, "WHERE account_id = $1 AND kind = $2 AND status = $3 AND created_at >= $4 AND created_at < $5")
	assert.Contains(t, q, "ORDER BY created_at DESC, id LIMIT $6")
	require.Len(t, args, 6)
	assert.Equal(t, id, args[0])
	assert.Equal(t, "deposit", args[1])
	assert.Equal(t, 20, args[5])

	q, args = buildEntryQuery(store.EntryFilter{})
	assert.NotContains(t, q, "WHERE")
	assert.NotContains(t, q, "LIMIT")
	assert.Empty(t, args)
}

func TestMapError(t *testing.T) {
	dupMobile := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "accounts_mobile_key"}
	err := mapError(fmt.Errorf("insert: %w", dupMobile))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, apperr.ReasonDuplicateMobile, apperr.ReasonOf(err))

	err = mapError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "accounts_referral_code_key"})
	assert.Equal(t, apperr.ReasonDuplicateReferralCode, apperr.ReasonOf(err))

	err = mapError(&pgconn.PgError{Code: codeForeignKeyViolation})
	assert.True(t, errors.Is(err, apperr.ErrIntegrity))
	assert.Equal(t, apperr.ReasonDanglingAccount, apperr.ReasonOf(err))

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&pgconn.PgError{Code: codeDeadlockDetected}))
	assert.True(t, retryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: codeSerializationFailure})))
	assert.False(t, retryable(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, retryable(nil))
}

func TestParseDecimals(t *testing.T) {
	var a models.Account
	require.NoError(t, parseDecimals(decimalField{"100.000001", &a.Balance}))
	assert.Equal(t, "100.000001", a.Balance.String())
	assert.Error(t, parseDecimals(decimalField{"abc", &a.Balance}))

	d, err := optionalDecimal(nil)
	require.NoError(t, err)
	assert.Nil(t, d)
}
