package handlers

import (
	"net/http"

	"github.com/cyberclick/backend/internal/httpx"
	"github.com/cyberclick/backend/internal/ledger"
)

// CatalogHandler serves the public tier and task tables.
type CatalogHandler struct {
	Ledger ledger.Service
}

// Tiers handles GET /tiers.
func (h *CatalogHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Ledger.Tiers())
}

// Tasks handles GET /tasks.
func (h *CatalogHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Ledger.Tasks())
}
