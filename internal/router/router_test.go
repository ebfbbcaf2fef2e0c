package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyberclick/backend/internal/auth"
	"github.com/cyberclick/backend/internal/handlers"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/middleware"
	"github.com/cyberclick/backend/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	st := store.NewMemory()
	led := ledger.NewService(st, ledger.DefaultConfig(), logger)
	authSvc := auth.NewService(st, led, auth.Options{
		Secret:            "test",
		TokenTTL:          time.Hour,
		AdminMobile:       "0700000000",
		AdminPasswordHash: string(hash),
	})
	h := New(Deps{
		Auth:           auth.NewHandler(authSvc, logger),
		Tokens:         authSvc,
		Accounts:       &handlers.AccountHandler{Ledger: led, Logger: logger},
		Admin:          &handlers.AdminHandler{Ledger: led, Logger: logger},
		Catalog:        &handlers.CatalogHandler{Ledger: led},
		Idempotency:    middleware.NewMemoryKeyStore(),
		IdempotencyTTL: time.Hour,
		CORSOrigins:    []string{"*"},
		Logger:         logger,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path, body string, headers ...string) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *client) login(mobile, password string) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/v1/auth/login", `{"mobile":"`+mobile+`","password":"`+password+`"}`)
	require.Equal(c.t, http.StatusOK, status, body)
	c.token = body["token"].(string)
}

func TestDepositApprovalFlow(t *testing.T) {
	srv := newServer(t)
	anon := &client{t: t, base: srv.URL}

	status, body := anon.do(http.MethodPost, "/api/v1/auth/register", `{"mobile":"0711111111","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, status, body)
	code := body["referral_code"].(string)
	status, _ = anon.do(http.MethodPost, "/api/v1/auth/register", `{"mobile":"0722222222","password":"hunter22","invite_code":"`+code+`"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = anon.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	referrer := &client{t: t, base: srv.URL}
	referrer.login("0711111111", "hunter22")
	invitee := &client{t: t, base: srv.URL}
	invitee.login("0722222222", "hunter22")

	status, dep := invitee.do(http.MethodPost, "/api/v1/me/deposits", `{"amount":"1000","proof_ref":"mpesa-abc"}`)
	require.Equal(t, http.StatusCreated, status, dep)
	entryID := dep["id"].(string)

	// Users cannot reach admin routes.
	status, _ = invitee.do(http.MethodPost, "/api/v1/admin/entries/"+entryID+"/approve", "")
	assert.Equal(t, http.StatusForbidden, status)

	admin := &client{t: t, base: srv.URL}
	admin.login("0700000000", "admin-pass")
	status, _ = admin.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = admin.do(http.MethodPost, "/api/v1/admin/entries/"+entryID+"/approve", "")
	require.Equal(t, http.StatusOK, status)
	status, body = admin.do(http.MethodPost, "/api/v1/admin/entries/"+entryID+"/approve", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_resolved", body["error"])

	status, me := referrer.do(http.MethodGet, "/api/v1/me", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "250", me["balance"])

	status, me = invitee.do(http.MethodGet, "/api/v1/me", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1100", me["balance"])
}

func TestIdempotentTap(t *testing.T) {
	srv := newServer(t)
	anon := &client{t: t, base: srv.URL}
	status, _ := anon.do(http.MethodPost, "/api/v1/auth/register", `{"mobile":"0711111111","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, status)
	user := &client{t: t, base: srv.URL}
	user.login("0711111111", "hunter22")

	status, _ = user.do(http.MethodPost, "/api/v1/me/tap", "", middleware.IdempotencyHeader, "tap-1")
	assert.Equal(t, http.StatusOK, status)
	status, body := user.do(http.MethodPost, "/api/v1/me/tap", "", middleware.IdempotencyHeader, "tap-1")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_request", body["error"])
}

func TestPublicCatalog(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/tiers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tiers []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tiers))
	assert.Len(t, tiers, 8)

	resp2, err := http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Post(srv.URL+"/api/v1/tiers", "application/json", nil)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}
