package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Lock       LockConfig
	Settlement SettlementConfig
	Recovery   RecoveryConfig
	Invoicing  InvoicingConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds access-token verification settings
type JWTConfig struct {
	Secret    string
	Issuer    string
	SkipPaths []string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// LockConfig selects the lock store backing the client lock and in-flight guard
type LockConfig struct {
	Backend   string // redis or memory
	KeyPrefix string
}

// SettlementConfig holds the concurrency and recovery knobs of the settlement workflows
type SettlementConfig struct {
	LockTTL              time.Duration // lease duration of the per-client lock
	LockWait             time.Duration // how long to wait for the per-client lock
	InflightTTL          time.Duration // lease duration of the per-invoice in-flight guard
	ReconcileMaxAttempts int
	ReconcileBackoff     time.Duration // first retry delay, doubled on each attempt
	ReconcileConcurrency int           // parallel invoice reconciles in ReconcileClient
}

// RecoveryConfig holds the background sweep that finishes interrupted cancellations
type RecoveryConfig struct {
	Enabled       bool
	Interval      time.Duration
	BatchSize     int
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// InvoicingConfig holds document defaults and numbering
type InvoicingConfig struct {
	VATRate       decimal.Decimal
	SequenceReset string // never or yearly
	NumberPadding int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL Collector gRPC endpoint, e.g. localhost:4317
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // plaintext gRPC, development only
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled       bool
	ServerAddress string // e.g. http://pyroscope:4040
	SpanProfiles  bool   // link CPU profiles to trace spans, requires Telemetry.Enabled
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICE_ prefix (e.g., INVOICE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("recovery.enabled", true)

	vatRate := decimal.Zero
	if raw := v.GetString("invoicing.vat_rate"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invoicing.vat_rate: %w", err)
		}
		vatRate = parsed
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			SkipPaths: v.GetStringSlice("jwt.skip_paths"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Lock: LockConfig{
			Backend:   v.GetString("lock.backend"),
			KeyPrefix: v.GetString("lock.key_prefix"),
		},
		Settlement: SettlementConfig{
			LockTTL:              v.GetDuration("settlement.lock_ttl"),
			LockWait:             v.GetDuration("settlement.lock_wait"),
			InflightTTL:          v.GetDuration("settlement.inflight_ttl"),
			ReconcileMaxAttempts: v.GetInt("settlement.reconcile_max_attempts"),
			ReconcileBackoff:     v.GetDuration("settlement.reconcile_backoff"),
			ReconcileConcurrency: v.GetInt("settlement.reconcile_concurrency"),
		},
		Recovery: RecoveryConfig{
			Enabled:       v.GetBool("recovery.enabled"),
			Interval:      v.GetDuration("recovery.interval"),
			BatchSize:     v.GetInt("recovery.batch_size"),
			Workers:       v.GetInt("recovery.workers"),
			JobTimeout:    v.GetDuration("recovery.job_timeout"),
			RetryAttempts: v.GetInt("recovery.retry_attempts"),
			RetryDelay:    v.GetDuration("recovery.retry_delay"),
		},
		Invoicing: InvoicingConfig{
			VATRate:       vatRate,
			SequenceReset: v.GetString("invoicing.sequence_reset"),
			NumberPadding: v.GetInt("invoicing.number_padding"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			Profiling: ProfilingConfig{
				Enabled:       v.GetBool("telemetry.profiling.enabled"),
				ServerAddress: v.GetString("telemetry.profiling.server_address"),
				SpanProfiles:  v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoice-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "invoices"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "invoice-app"
	}
	if len(cfg.JWT.SkipPaths) == 0 {
		cfg.JWT.SkipPaths = []string{"/health"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	// No CORS origin default: cross-origin requests stay disabled until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Lock.KeyPrefix == "" {
		cfg.Lock.KeyPrefix = "invoice:"
	}
	if cfg.Settlement.LockTTL == 0 {
		cfg.Settlement.LockTTL = 30 * time.Second
	}
	if cfg.Settlement.LockWait == 0 {
		cfg.Settlement.LockWait = 5 * time.Second
	}
	if cfg.Settlement.InflightTTL == 0 {
		cfg.Settlement.InflightTTL = 30 * time.Second
	}
	if cfg.Settlement.ReconcileMaxAttempts == 0 {
		cfg.Settlement.ReconcileMaxAttempts = 3
	}
	if cfg.Settlement.ReconcileBackoff == 0 {
		cfg.Settlement.ReconcileBackoff = 100 * time.Millisecond
	}
	if cfg.Settlement.ReconcileConcurrency == 0 {
		cfg.Settlement.ReconcileConcurrency = 4
	}
	if cfg.Recovery.Interval == 0 {
		cfg.Recovery.Interval = time.Minute
	}
	if cfg.Recovery.BatchSize == 0 {
		cfg.Recovery.BatchSize = 50
	}
	if cfg.Recovery.Workers == 0 {
		cfg.Recovery.Workers = 2
	}
	if cfg.Recovery.JobTimeout == 0 {
		cfg.Recovery.JobTimeout = time.Minute
	}
	if cfg.Recovery.RetryAttempts == 0 {
		cfg.Recovery.RetryAttempts = 3
	}
	if cfg.Recovery.RetryDelay == 0 {
		cfg.Recovery.RetryDelay = 5 * time.Second
	}
	if cfg.Invoicing.SequenceReset == "" {
		cfg.Invoicing.SequenceReset = "never"
	}
	if cfg.Invoicing.NumberPadding == 0 {
		cfg.Invoicing.NumberPadding = 5
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "invoice-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.Profiling.ServerAddress == "" {
		cfg.Telemetry.Profiling.ServerAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Lock.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("lock.backend must be 'redis' or 'memory', got %q", c.Lock.Backend)
	}

	if c.Settlement.LockTTL < c.Settlement.LockWait {
		return fmt.Errorf("settlement.lock_ttl (%s) must not be shorter than settlement.lock_wait (%s)",
			c.Settlement.LockTTL, c.Settlement.LockWait)
	}
	if c.Settlement.ReconcileMaxAttempts < 1 {
		return fmt.Errorf("settlement.reconcile_max_attempts must be at least 1")
	}
	if c.Settlement.ReconcileConcurrency < 1 {
		return fmt.Errorf("settlement.reconcile_concurrency must be at least 1")
	}

	if c.Recovery.Interval < time.Second {
		return fmt.Errorf("recovery.interval must be at least 1s, got %s", c.Recovery.Interval)
	}
	if c.Recovery.BatchSize < 1 || c.Recovery.Workers < 1 {
		return fmt.Errorf("recovery.batch_size and recovery.workers must be at least 1")
	}

	switch c.Invoicing.SequenceReset {
	case "never", "yearly":
	default:
		return fmt.Errorf("invoicing.sequence_reset must be 'never' or 'yearly', got %q", c.Invoicing.SequenceReset)
	}
	if c.Invoicing.VATRate.IsNegative() || c.Invoicing.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invoicing.vat_rate must be between 0 and 1, got %s", c.Invoicing.VATRate)
	}
	if c.Invoicing.NumberPadding < 1 || c.Invoicing.NumberPadding > 12 {
		return fmt.Errorf("invoicing.number_padding must be between 1 and 12")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// memory locks only serialize a single process
		if c.Lock.Backend != "redis" {
			return fmt.Errorf("lock.backend must be 'redis' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
