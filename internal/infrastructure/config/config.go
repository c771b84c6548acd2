package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

const envPrefix = "GSTBOOKS_"

// DefaultConfigFile is read when present; GSTBOOKS_CONFIG_FILE overrides it.
const DefaultConfigFile = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`

	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	GSTAPI     GSTAPIConfig     `koanf:"gst_api"`
	Credential CredentialConfig `koanf:"credential"`
	Books      BooksConfig      `koanf:"books"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// RedisConfig configures the credential session store. An empty URL selects
// the in-process store.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type GSTAPIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// Retry settings apply to auth-status reads only.
	RetryMaxElapsed      time.Duration `koanf:"retry_max_elapsed"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
}

type CredentialConfig struct {
	RefreshWindow      time.Duration `koanf:"refresh_window"`
	StatusPollInterval time.Duration `koanf:"status_poll_interval"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
	LockTTL            time.Duration `koanf:"lock_ttl"`
	RemoteStatusCheck  bool          `koanf:"remote_status_check"`
}

type BooksConfig struct {
	DiscountBase string `koanf:"discount_base"`
	Currency     string `koanf:"currency"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type RateLimitConfig struct {
	OTPRequestsPerMinute int `koanf:"otp_requests_per_minute"`
	OTPBurst             int `koanf:"otp_burst"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MinConns:        1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		GSTAPI: GSTAPIConfig{
			BaseURL:              "http://localhost:9000/api",
			Timeout:              30 * time.Second,
			RetryMaxElapsed:      20 * time.Second,
			RetryInitialInterval: 500 * time.Millisecond,
		},
		Credential: CredentialConfig{
			RefreshWindow:      30 * time.Minute,
			StatusPollInterval: 5 * time.Minute,
			SessionTTL:         24 * time.Hour,
			LockTTL:            2 * time.Minute,
			RemoteStatusCheck:  true,
		},
		Books: BooksConfig{
			DiscountBase: string(tax.DiscountOnLineTotals),
			Currency:     "INR",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "gstbooks",
			SamplingRate: 1.0,
		},
		RateLimit: RateLimitConfig{
			OTPRequestsPerMinute: 3,
			OTPBurst:             1,
		},
	}
}

// Load reads defaults, then the optional YAML file, then GSTBOOKS_* variables.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	path := os.Getenv(envPrefix + "CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom is Load without the .env step and with an explicit file path.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sections whose names contain an underscore; the first underscore after
// them separates section from key.
var sections = []string{"gst_api", "rate_limit"}

// envKey maps GSTBOOKS_GST_API_BASE_URL to gst_api.base_url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Credential.RefreshWindow <= 0 {
		errs = append(errs, fmt.Errorf("credential.refresh_window must be positive"))
	}
	if c.Credential.StatusPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("credential.status_poll_interval must be positive"))
	}
	if c.Credential.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("credential.lock_ttl must be positive"))
	}
	if c.GSTAPI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gst_api.timeout must be positive"))
	}
	if c.GSTAPI.BaseURL == "" {
		errs = append(errs, fmt.Errorf("gst_api.base_url is required"))
	}
	if _, err := tax.ParseDiscountBase(c.Books.DiscountBase); err != nil {
		errs = append(errs, fmt.Errorf("books.discount_base: %w", err))
	}
	if c.RateLimit.OTPRequestsPerMinute <= 0 || c.RateLimit.OTPBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit otp settings must be positive"))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be within [0,1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DiscountBase returns the parsed books.discount_base.
func (c *Config) DiscountBase() tax.DiscountBase {
	base, err := tax.ParseDiscountBase(c.Books.DiscountBase)
	if err != nil {
		return tax.DiscountOnLineTotals
	}
	return base
}
