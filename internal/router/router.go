package router

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/auth"
	"github.com/cyberclick/backend/internal/handlers"
	"github.com/cyberclick/backend/internal/middleware"
)

const base = "/api/v1"

type Deps struct {
	Auth     *auth.Handler
	Tokens   middleware.TokenValidator
	Accounts *handlers.AccountHandler
	Admin    *handlers.AdminHandler
	Catalog  *handlers.CatalogHandler

	Idempotency    middleware.KeyStore
	IdempotencyTTL time.Duration
	CORSOrigins    []string
	Logger         logrus.FieldLogger
}

// New returns an http.Handler that serves the API under /api/v1.
// Chain: Recover -> RequestLogger -> CORS -> mux; protected routes add
// BearerAuth -> role gate -> Idempotency.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Public.
	mux.HandleFunc("POST "+base+"/auth/register", d.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", d.Auth.Login)
	mux.HandleFunc("GET "+base+"/tiers", d.Catalog.Tiers)
	mux.HandleFunc("GET "+base+"/tasks", d.Catalog.Tasks)

	authn := middleware.BearerAuth(d.Tokens, d.Logger)
	idem := middleware.Idempotency(d.Idempotency, d.IdempotencyTTL, d.Logger)
	user := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireUser(idem(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireAdmin(idem(h)))
	}

	// Account holder.
	a := d.Accounts
	mux.Handle("GET "+base+"/me", user(a.Me))
	mux.Handle("PATCH "+base+"/me/bank", user(a.UpdateBank))
	mux.Handle("POST "+base+"/me/tap", user(a.Tap))
	mux.Handle("POST "+base+"/me/tier", user(a.PurchaseTier))
	mux.Handle("POST "+base+"/me/tasks/{id}/claim", user(a.ClaimTask))
	mux.Handle("POST "+base+"/me/deposits", user(a.SubmitDeposit))
	mux.Handle("POST "+base+"/me/withdrawals", user(a.RequestWithdrawal))
	mux.Handle("GET "+base+"/me/entries", user(a.Entries))
	mux.Handle("GET "+base+"/me/team", user(a.Team))

	// Administrator.
	ad := d.Admin
	mux.Handle("GET "+base+"/admin/accounts", admin(ad.Accounts))
	mux.Handle("POST "+base+"/admin/accounts/{id}/balance", admin(ad.SetBalance))
	mux.Handle("POST "+base+"/admin/accounts/{id}/ban", admin(ad.ToggleBan))
	mux.Handle("GET "+base+"/admin/entries", admin(ad.Entries))
	mux.Handle("POST "+base+"/admin/entries/{id}/approve", admin(ad.Approve))
	mux.Handle("POST "+base+"/admin/entries/{id}/reject", admin(ad.Reject))
	mux.Handle("GET "+base+"/admin/stats", admin(ad.Stats))

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.IdempotencyHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
	})

	var h http.Handler = mux
	h = c.Handler(h)
	h = middleware.RequestLogger(d.Logger)(h)
	h = middleware.Recover(d.Logger)(h)
	return h
}
