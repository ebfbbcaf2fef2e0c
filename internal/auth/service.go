// Package auth issues and verifies bearer tokens for account holders and the
// administrator.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/models"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// AdminSubject is the token subject and audit actor of the administrator.
	AdminSubject = "administrator"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Actor is the authenticated caller of a request.
type Actor struct {
	AccountID uuid.UUID
	Role      string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Name is the identity written to audit logs.
func (a Actor) Name() string {
	if a.IsAdmin() {
		return AdminSubject
	}
	return a.AccountID.String()
}

type Service interface {
	Register(ctx context.Context, mobile, password, inviteCode string) (*models.Account, error)
	Login(ctx context.Context, mobile, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (Actor, error)
}

// AccountFinder is the read side auth needs from the store.
type AccountFinder interface {
	Account(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AccountByMobile(ctx context.Context, mobile string) (*models.Account, error)
}

type Options struct {
	Secret   string
	TokenTTL time.Duration
	// AdminMobile and AdminPasswordHash enable administrator login.
	AdminMobile       string
	AdminPasswordHash string
	Now               func() time.Time
}

type service struct {
	accounts AccountFinder
	ledger   ledger.Service
	opts     Options
}

func NewService(accounts AccountFinder, led ledger.Service, opts Options) *service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{accounts: accounts, ledger: led, opts: opts}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register opens an account. The administrator mobile is reserved.
func (s *service) Register(ctx context.Context, mobile, password, inviteCode string) (*models.Account, error) {
	if s.opts.AdminMobile != "" && mobile == s.opts.AdminMobile {
		return nil, apperr.Conflict(apperr.ReasonDuplicateMobile, "mobile %s is already registered", mobile)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.ledger.OpenAccount(ctx, ledger.Registration{
		Mobile:       mobile,
		PasswordHash: string(hash),
		InviteCode:   inviteCode,
	})
}

func (s *service) Login(ctx context.Context, mobile, password string) (string, error) {
	if s.opts.AdminMobile != "" && subtle.ConstantTimeCompare([]byte(mobile), []byte(s.opts.AdminMobile)) == 1 {
		if err := bcrypt.CompareHashAndPassword([]byte(s.opts.AdminPasswordHash), []byte(password)); err != nil {
			return "", ErrInvalidCredentials
		}
		return s.issueToken(AdminSubject, RoleAdmin)
	}

	acc, err := s.accounts.AccountByMobile(ctx, mobile)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if acc.Banned {
		return "", apperr.Validation(apperr.ReasonAccountBanned, "account is banned")
	}
	return s.issueToken(acc.ID.String(), RoleUser)
}

func (s *service) issueToken(subject, role string) (string, error) {
	now := s.opts.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString([]byte(s.opts.Secret))
}

// ValidateToken verifies the signature and expiry. User tokens are also
// checked against the account so a ban takes effect immediately.
func (s *service) ValidateToken(ctx context.Context, token string) (Actor, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.opts.Now))
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Actor{}, ErrInvalidToken
	}

	switch c.Role {
	case RoleAdmin:
		if c.Subject != AdminSubject || s.opts.AdminMobile == "" {
			return Actor{}, ErrInvalidToken
		}
		return Actor{Role: RoleAdmin}, nil
	case RoleUser:
		id, err := uuid.Parse(c.Subject)
		if err != nil {
			return Actor{}, ErrInvalidToken
		}
		acc, err := s.accounts.Account(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return Actor{}, ErrInvalidToken
		}
		if err != nil {
			return Actor{}, err
		}
		if acc.Banned {
			return Actor{}, apperr.Validation(apperr.ReasonAccountBanned, "account is banned")
		}
		return Actor{AccountID: id, Role: RoleUser}, nil
	}
	return Actor{}, ErrInvalidToken
}
