package auth

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/httpx"
	"github.com/cyberclick/backend/internal/models"
)

type RegisterRequest struct {
	Mobile     string `json:"mobile" validate:"required,len=10,numeric"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	InviteCode string `json:"invite_code" validate:"omitempty,max=16,alphanum"`
}

type LoginRequest struct {
	Mobile   string `json:"mobile" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	svc Service
	log logrus.FieldLogger
}

func NewHandler(svc Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, log: log.WithField("component", "auth")}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	acc, err := h.svc.Register(r.Context(), req.Mobile, req.Password, req.InviteCode)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, accountResponse(acc))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Mobile, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.Unauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// AccountResponse is the public view of an account returned at registration.
type AccountResponse struct {
	ID           string `json:"id"`
	Mobile       string `json:"mobile"`
	ReferralCode string `json:"referral_code"`
	Balance      string `json:"balance"`
}

func accountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:           a.ID.String(),
		Mobile:       a.Mobile,
		ReferralCode: a.ReferralCode,
		Balance:      a.Balance.String(),
	}
}
