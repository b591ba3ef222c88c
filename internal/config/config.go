package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress         string
	DatabaseURI        string
	RedisAddress       string
	AuthSecret         string
	AdminToken         string
	LogLevel           string
	ShutdownTimeout    time.Duration
	WithdrawalsEnabled bool

	Retry  RetryConfig
	Outbox OutboxConfig
	Gate   GateConfig
	Risk   RiskConfig
	Rails  RailsConfig

	Seon        Endpoint
	Chainalysis Endpoint
	Custody     Endpoint
	Processor   Endpoint

	Kafka KafkaConfig
	SMTP  SMTPConfig
}

// RetryConfig drives the background retry worker.
type RetryConfig struct {
	PollInterval time.Duration
	ItemDelay    time.Duration
	BatchSize    int
	Limit        int
	StaleAfter   time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// GateConfig tunes the per-user submission guard.
type GateConfig struct {
	Cooldown time.Duration
	LockTTL  time.Duration
}

type RiskConfig struct {
	FlagPatterns []string
	DisableScore float64
}

// RailsConfig carries per-rail limits and switches. Rail and network keys
// use the lower-case rail identifier and the upper-case network code.
type RailsConfig struct {
	Enabled        map[string]bool
	MinAmounts     map[string]decimal.Decimal
	HotWallets     []string
	TwoFactor      map[string]bool
	DailyLimit     decimal.Decimal
	TransferMinKYC int
	FiatFee        decimal.Decimal
}

// RailEnabled reports whether withdrawals on rail over network are switched on.
func (r RailsConfig) RailEnabled(rail, network string) bool {
	return r.Enabled[rail+":"+network]
}

// MinAmount returns the configured minimum for rail, zero when unset.
func (r RailsConfig) MinAmount(rail string) decimal.Decimal {
	if v, ok := r.MinAmounts[rail]; ok {
		return v
	}
	return decimal.Zero
}

// RequiresTwoFactor reports whether rail demands a TOTP code.
func (r RailsConfig) RequiresTwoFactor(rail string) bool {
	return r.TwoFactor[rail]
}

// IsHotWallet reports whether address belongs to the platform.
func (r RailsConfig) IsHotWallet(address string) bool {
	for _, w := range r.HotWallets {
		if strings.EqualFold(w, address) {
			return true
		}
	}
	return false
}

// Endpoint is an upstream HTTP API.
type Endpoint struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
	EventsTopic        string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

const (
	defaultRunAddress      = ":8080"
	defaultRedisAddress    = "localhost:6379"
	defaultAuthSecret      = "change-me-in-production"
	defaultShutdownTimeout = 10 * time.Second
	defaultPollInterval    = 30 * time.Second
	defaultItemDelay       = 500 * time.Millisecond
	defaultBatchSize       = 100
	defaultRetryLimit      = 5
	defaultStaleAfter      = 10 * time.Minute
	defaultBackoffBase     = 30 * time.Second
	defaultBackoffMax      = 30 * time.Minute
	defaultOutboxInterval  = 2 * time.Second
	defaultGateCooldown    = 5 * time.Second
	defaultGateLockTTL     = time.Minute
	defaultClientTimeout   = 10 * time.Second
)

type rawEnv struct {
	RunAddress         string        `env:"RUN_ADDRESS" envDefault:":8080"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	RedisAddress       string        `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	AuthSecret         string        `env:"AUTH_SECRET" envDefault:"change-me-in-production"`
	AuthSecretFile     string        `env:"AUTH_SECRET_FILE"`
	AdminToken         string        `env:"ADMIN_TOKEN"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	WithdrawalsEnabled bool          `env:"WITHDRAWALS_ENABLED" envDefault:"true"`

	RetryPollInterval time.Duration `env:"RETRY_POLL_INTERVAL" envDefault:"30s"`
	RetryItemDelay    time.Duration `env:"RETRY_ITEM_DELAY" envDefault:"500ms"`
	RetryBatchSize    int           `env:"RETRY_BATCH_SIZE" envDefault:"100"`
	RetryLimit        int           `env:"RETRY_LIMIT" envDefault:"5"`
	RetryStaleAfter   time.Duration `env:"RETRY_STALE_AFTER" envDefault:"10m"`
	RetryBackoffBase  time.Duration `env:"RETRY_BACKOFF_BASE" envDefault:"30s"`
	RetryMaxBackoff   time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"30m"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	GateCooldown time.Duration `env:"GATE_COOLDOWN" envDefault:"5s"`
	GateLockTTL  time.Duration `env:"GATE_LOCK_TTL" envDefault:"60s"`

	RiskFlagPatterns []string `env:"RISK_FLAG_PATTERNS" envSeparator:";"`
	RiskDisableScore float64  `env:"RISK_DISABLE_SCORE" envDefault:"90"`

	RailsEnabled        []string          `env:"RAILS_ENABLED" envSeparator:"," envDefault:"bitcoin:BTC,ethereum:ETH,tron:TRX,ripple:XRP,fiat:FIAT"`
	RailsMinAmounts     map[string]string `env:"RAILS_MIN_AMOUNTS" envSeparator:"," envKeyValSeparator:"=" envDefault:"bitcoin=0.0001,ethereum=0.001,tron=10,ripple=20,fiat=10"`
	RailsHotWallets     []string          `env:"RAILS_HOT_WALLETS" envSeparator:","`
	RailsTwoFactor      []string          `env:"RAILS_TWO_FACTOR" envSeparator:","`
	DailyWithdrawLimit  string            `env:"DAILY_WITHDRAW_LIMIT" envDefault:"10000"`
	TransferMinKYCLevel int               `env:"TRANSFER_MIN_KYC_LEVEL" envDefault:"2"`
	FiatFee             string            `env:"FIAT_FEE" envDefault:"0"`

	SeonURL            string        `env:"SEON_URL"`
	SeonAPIKey         string        `env:"SEON_API_KEY"`
	SeonTimeout        time.Duration `env:"SEON_TIMEOUT" envDefault:"10s"`
	ChainalysisURL     string        `env:"CHAINALYSIS_URL"`
	ChainalysisAPIKey  string        `env:"CHAINALYSIS_API_KEY"`
	ChainalysisTimeout time.Duration `env:"CHAINALYSIS_TIMEOUT" envDefault:"10s"`
	CustodyURL         string        `env:"CUSTODY_GATEWAY_URL"`
	CustodyAPIKey      string        `env:"CUSTODY_GATEWAY_API_KEY"`
	CustodyTimeout     time.Duration `env:"CUSTODY_GATEWAY_TIMEOUT" envDefault:"10s"`
	ProcessorURL       string        `env:"PROCESSOR_URL"`
	ProcessorAPIKey    string        `env:"PROCESSOR_API_KEY"`
	ProcessorTimeout   time.Duration `env:"PROCESSOR_TIMEOUT" envDefault:"10s"`

	KafkaBrokers            []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNotificationsTopic string   `env:"KAFKA_NOTIFICATIONS_TOPIC" envDefault:"withdrawal.notifications"`
	KafkaEventsTopic        string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"payouts.events"`

	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string   `env:"SMTP_USERNAME"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	AlertFrom    string   `env:"ALERT_FROM" envDefault:"payouts@localhost"`
	AlertTo      []string `env:"ALERT_TO" envSeparator:","`
}

// Load parses configuration from environment variables and flags.
func Load() (*Config, error) {
	return load(os.Args[1:], nil)
}

// load reads environ instead of the process environment when it is not nil.
func load(args []string, environ map[string]string) (*Config, error) {
	var raw rawEnv
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("payouts", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		pollIntervalStr    = raw.RetryPollInterval.String()
		shutdownTimeoutStr = raw.ShutdownTimeout.String()
	)

	fs.StringVar(&raw.RunAddress, "a", raw.RunAddress, "HTTP server listen address")
	fs.StringVar(&raw.DatabaseURI, "d", raw.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&raw.RedisAddress, "redis", raw.RedisAddress, "Redis address")
	fs.StringVar(&raw.AdminToken, "admin-token", raw.AdminToken, "Static token for admin endpoints")
	fs.StringVar(&raw.LogLevel, "log-level", raw.LogLevel, "Log level")
	fs.IntVar(&raw.RetryLimit, "retry-limit", raw.RetryLimit, "Attempts before a withdrawal is parked for reprocessing")
	fs.StringVar(&pollIntervalStr, "poll-interval", pollIntervalStr, "Interval between retry worker runs")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if raw.RetryPollInterval, err = time.ParseDuration(pollIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	if raw.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if raw.AuthSecretFile != "" {
		content, err := os.ReadFile(raw.AuthSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read auth secret file: %w", err)
		}
		raw.AuthSecret = strings.TrimSpace(string(content))
	}

	cfg := &Config{
		RunAddress:         orString(raw.RunAddress, defaultRunAddress),
		DatabaseURI:        raw.DatabaseURI,
		RedisAddress:       orString(raw.RedisAddress, defaultRedisAddress),
		AuthSecret:         orString(raw.AuthSecret, defaultAuthSecret),
		AdminToken:         raw.AdminToken,
		LogLevel:           raw.LogLevel,
		ShutdownTimeout:    orDuration(raw.ShutdownTimeout, defaultShutdownTimeout),
		WithdrawalsEnabled: raw.WithdrawalsEnabled,
		Retry: RetryConfig{
			PollInterval: orDuration(raw.RetryPollInterval, defaultPollInterval),
			ItemDelay:    orDuration(raw.RetryItemDelay, defaultItemDelay),
			BatchSize:    orInt(raw.RetryBatchSize, defaultBatchSize),
			Limit:        orInt(raw.RetryLimit, defaultRetryLimit),
			StaleAfter:   orDuration(raw.RetryStaleAfter, defaultStaleAfter),
			BackoffBase:  orDuration(raw.RetryBackoffBase, defaultBackoffBase),
			BackoffMax:   orDuration(raw.RetryMaxBackoff, defaultBackoffMax),
		},
		Outbox: OutboxConfig{
			PollInterval: orDuration(raw.OutboxPollInterval, defaultOutboxInterval),
			BatchSize:    orInt(raw.OutboxBatchSize, defaultBatchSize),
		},
		Gate: GateConfig{
			Cooldown: orDuration(raw.GateCooldown, defaultGateCooldown),
			LockTTL:  orDuration(raw.GateLockTTL, defaultGateLockTTL),
		},
		Risk: RiskConfig{
			FlagPatterns: raw.RiskFlagPatterns,
			DisableScore: raw.RiskDisableScore,
		},
		Seon:        endpoint(raw.SeonURL, raw.SeonAPIKey, raw.SeonTimeout),
		Chainalysis: endpoint(raw.ChainalysisURL, raw.ChainalysisAPIKey, raw.ChainalysisTimeout),
		Custody:     endpoint(raw.CustodyURL, raw.CustodyAPIKey, raw.CustodyTimeout),
		Processor:   endpoint(raw.ProcessorURL, raw.ProcessorAPIKey, raw.ProcessorTimeout),
		Kafka: KafkaConfig{
			Brokers:            raw.KafkaBrokers,
			NotificationsTopic: raw.KafkaNotificationsTopic,
			EventsTopic:        raw.KafkaEventsTopic,
		},
		SMTP: SMTPConfig{
			Host:     raw.SMTPHost,
			Port:     raw.SMTPPort,
			Username: raw.SMTPUsername,
			Password: raw.SMTPPassword,
			From:     raw.AlertFrom,
			To:       raw.AlertTo,
		},
	}

	if cfg.Rails, err = parseRails(raw); err != nil {
		return nil, err
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.Custody.URL == "" {
		return nil, fmt.Errorf("custody gateway URL must be provided")
	}

	return cfg, nil
}

func parseRails(raw rawEnv) (RailsConfig, error) {
	rails := RailsConfig{
		Enabled:        make(map[string]bool, len(raw.RailsEnabled)),
		MinAmounts:     make(map[string]decimal.Decimal, len(raw.RailsMinAmounts)),
		HotWallets:     raw.RailsHotWallets,
		TwoFactor:      make(map[string]bool, len(raw.RailsTwoFactor)),
		TransferMinKYC: raw.TransferMinKYCLevel,
	}

	for _, pair := range raw.RailsEnabled {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, ":") {
			return RailsConfig{}, fmt.Errorf("invalid enabled rail %q: want rail:NETWORK", pair)
		}
		rails.Enabled[pair] = true
	}

	for rail, value := range raw.RailsMinAmounts {
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return RailsConfig{}, fmt.Errorf("invalid minimum amount for %s: %w", rail, err)
		}
		rails.MinAmounts[strings.TrimSpace(rail)] = amount
	}

	for _, rail := range raw.RailsTwoFactor {
		if rail = strings.TrimSpace(rail); rail != "" {
			rails.TwoFactor[rail] = true
		}
	}

	var err error
	if rails.DailyLimit, err = decimal.NewFromString(raw.DailyWithdrawLimit); err != nil {
		return RailsConfig{}, fmt.Errorf("invalid daily withdraw limit: %w", err)
	}
	if rails.FiatFee, err = decimal.NewFromString(raw.FiatFee); err != nil {
		return RailsConfig{}, fmt.Errorf("invalid fiat fee: %w", err)
	}

	return rails, nil
}

func endpoint(url, apiKey string, timeout time.Duration) Endpoint {
	return Endpoint{URL: url, APIKey: apiKey, Timeout: orDuration(timeout, defaultClientTimeout)}
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
