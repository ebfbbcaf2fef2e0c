// Package config loads process settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/ledger"
)

type Config struct {
	// --- HTTP ---
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins    []string      `envconfig:"CORS_ORIGINS" default:"*"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`

	// --- Database ---
	// Empty DatabaseURL runs the service on the in-memory store.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`

	// --- Redis ---
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Auth ---
	JWTSecret         string        `envconfig:"JWT_SECRET"`
	TokenTTL          time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AdminMobile       string        `envconfig:"ADMIN_MOBILE"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`

	// --- Economy ---
	RegistrationBonus     decimal.Decimal `envconfig:"REGISTRATION_BONUS" default:"100"`
	MinWithdrawal         decimal.Decimal `envconfig:"MIN_WITHDRAWAL" default:"300"`
	WithdrawalFeeRate     decimal.Decimal `envconfig:"WITHDRAWAL_FEE_RATE" default:"0.20"`
	ReferralTaskThreshold int             `envconfig:"REFERRAL_TASK_THRESHOLD" default:"20"`

	// --- Jobs ---
	// Cron spec for the periodic accrual sweep. Empty disables the sweep.
	AccrualSweepCron string        `envconfig:"ACCRUAL_SWEEP_CRON" default:"@every 1h"`
	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using process environment")
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.Production() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be > 0")
	}
	if c.DBMaxConns <= 0 {
		return errors.New("DB_MAX_CONNS must be > 0")
	}
	if _, err := logrus.ParseLevel(c.AppLogLevel); err != nil {
		return fmt.Errorf("APP_LOG_LEVEL: %w", err)
	}
	if c.RegistrationBonus.IsNegative() {
		return errors.New("REGISTRATION_BONUS must be >= 0")
	}
	if !c.MinWithdrawal.IsPositive() {
		return errors.New("MIN_WITHDRAWAL must be > 0")
	}
	if c.WithdrawalFeeRate.IsNegative() || c.WithdrawalFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("WITHDRAWAL_FEE_RATE must be in [0, 1)")
	}
	if c.ReferralTaskThreshold < 0 {
		return errors.New("REFERRAL_TASK_THRESHOLD must be >= 0")
	}
	if c.AccrualSweepCron != "" {
		if _, err := cron.ParseStandard(c.AccrualSweepCron); err != nil {
			return fmt.Errorf("ACCRUAL_SWEEP_CRON: %w", err)
		}
	}
	if (c.AdminMobile == "") != (c.AdminPasswordHash == "") {
		return errors.New("ADMIN_MOBILE and ADMIN_PASSWORD_HASH must be set together")
	}
	return nil
}

// Ledger returns the economic constants for the ledger service.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{
		RegistrationBonus:     c.RegistrationBonus,
		MinWithdrawal:         c.MinWithdrawal,
		WithdrawalFeeRate:     c.WithdrawalFeeRate,
		ReferralTaskThreshold: c.ReferralTaskThreshold,
	}
}

// LogLevel is validated by Validate.
func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.AppLogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
