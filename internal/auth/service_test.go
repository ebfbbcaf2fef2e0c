package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/store"
)

const adminMobile = "0700000000"

func newTestService(t *testing.T, now func() time.Time) (*service, ledger.Service) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	st := store.NewMemory()
	led := ledger.NewService(st, ledger.DefaultConfig(), logger)
	return NewService(st, led, Options{
		Secret:            "test-secret",
		TokenTTL:          time.Hour,
		AdminMobile:       adminMobile,
		AdminPasswordHash: string(hash),
		Now:               now,
	}), led
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "0712345678", "hunter22", "")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", acc.PasswordHash)

	token, err := svc.Login(ctx, "0712345678", "hunter22")
	require.NoError(t, err)

	actor, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, actor.AccountID)
	assert.Equal(t, RoleUser, actor.Role)
	assert.False(t, actor.IsAdmin())

	_, err = svc.Login(ctx, "0712345678", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "0799999999", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, "0712345678", "other-pass", "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestRegisterRejectsAdminMobile(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Register(context.Background(), adminMobile, "hunter22", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, apperr.ReasonDuplicateMobile, apperr.ReasonOf(err))

	_, err = svc.accounts.AccountByMobile(context.Background(), adminMobile)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestBannedAccountIsLockedOut(t *testing.T) {
	svc, led := newTestService(t, nil)
	ctx := context.Background()
	acc, err := svc.Register(ctx, "0712345678", "hunter22", "")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "0712345678", "hunter22")
	require.NoError(t, err)

	_, err = led.ToggleBan(ctx, AdminSubject, acc.ID)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "0712345678", "hunter22")
	assert.Equal(t, apperr.ReasonAccountBanned, apperr.ReasonOf(err))
	_, err = svc.ValidateToken(ctx, token)
	assert.Equal(t, apperr.ReasonAccountBanned, apperr.ReasonOf(err))
}

func TestAdminLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, adminMobile, "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login(ctx, adminMobile, "admin-pass")
	require.NoError(t, err)
	actor, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())
	assert.Equal(t, AdminSubject, actor.Name())
}

func TestValidateTokenRejects(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	_, err := svc.Register(ctx, "0712345678", "hunter22", "")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "0712345678", "hunter22")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = svc.ValidateToken(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with another key.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: AdminSubject}}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func TestHandlerRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"mobile":"12","password":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"mobile"`)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"mobile":"0812345678","password":"hunter22"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), apperr.ReasonInvalidMobile)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"mobile":"0712345678","password":"hunter22"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":"100"`)
}

func TestHandlerLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Register(context.Background(), "0712345678", "hunter22", "")
	require.NoError(t, err)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"mobile":"0712345678","password":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"mobile":"0712345678","password":"hunter22"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
}
