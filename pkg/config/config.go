package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL            = "https://open.feishu.cn/open-apis/"
	DefaultCredentialKind     = "tenant"
	DefaultTimeout            = 600 * time.Second
	DefaultConnectTimeout     = 5 * time.Second
	DefaultMaxRetries         = 2
	DefaultInitialRetryDelay  = 500 * time.Millisecond
	DefaultMaxRetryDelay      = 8 * time.Second
	DefaultMaxConnections     = 1000
	DefaultMaxIdleConnections = 100
	DefaultEventAddr          = ":8000"
	DefaultEventPath          = "/"
	DefaultLogLevel           = "info"
	DefaultLogFileMaxSizeMB   = 100
	DefaultLogFileMaxBackups  = 5
	DefaultLogFileMaxAgeDays  = 14
)

type Config struct {
	AppID             string
	AppSecret         string
	BaseURL           string
	CredentialKind    string
	WebhookURL        string
	WebhookSecret     string
	EncryptKey        string
	VerificationToken string

	Timeout            time.Duration
	ConnectTimeout     time.Duration
	MaxRetries         int
	InitialRetryDelay  time.Duration
	MaxRetryDelay      time.Duration
	MaxConnections     int
	MaxIdleConnections int

	EventAddr string
	EventPath string

	LogLevel          string
	LogFile           string
	LogFileMaxSizeMB  int
	LogFileMaxBackups int
	LogFileMaxAgeDays int

	// DatabaseDSN enables the Postgres event store when set.
	DatabaseDSN string
}

// Default returns a Config populated with the SDK defaults and no credentials.
func Default() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		CredentialKind:     DefaultCredentialKind,
		Timeout:            DefaultTimeout,
		ConnectTimeout:     DefaultConnectTimeout,
		MaxRetries:         DefaultMaxRetries,
		InitialRetryDelay:  DefaultInitialRetryDelay,
		MaxRetryDelay:      DefaultMaxRetryDelay,
		MaxConnections:     DefaultMaxConnections,
		MaxIdleConnections: DefaultMaxIdleConnections,
		EventAddr:          DefaultEventAddr,
		EventPath:          DefaultEventPath,
		LogLevel:           DefaultLogLevel,
		LogFileMaxSizeMB:   DefaultLogFileMaxSizeMB,
		LogFileMaxBackups:  DefaultLogFileMaxBackups,
		LogFileMaxAgeDays:  DefaultLogFileMaxAgeDays,
	}
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := Default()
	cfg.AppID = os.Getenv("LARK_APP_ID")
	cfg.AppSecret = os.Getenv("LARK_APP_SECRET")
	cfg.BaseURL = getEnv("LARK_BASE_URL", cfg.BaseURL)
	cfg.CredentialKind = getEnv("LARK_CREDENTIAL_KIND", cfg.CredentialKind)
	cfg.WebhookURL = os.Getenv("LARK_WEBHOOK_URL")
	cfg.WebhookSecret = os.Getenv("LARK_WEBHOOK_SECRET")
	cfg.EncryptKey = os.Getenv("LARK_ENCRYPT_KEY")
	cfg.VerificationToken = os.Getenv("LARK_VERIFICATION_TOKEN")
	cfg.EventAddr = getEnv("LARK_EVENT_ADDR", cfg.EventAddr)
	cfg.EventPath = getEnv("LARK_EVENT_PATH", cfg.EventPath)
	cfg.LogLevel = getEnv("LARK_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = os.Getenv("LARK_LOG_FILE")
	cfg.DatabaseDSN = os.Getenv("LARK_DB_DSN")

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LARK_TIMEOUT", &cfg.Timeout},
		{"LARK_CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"LARK_INITIAL_RETRY_DELAY", &cfg.InitialRetryDelay},
		{"LARK_MAX_RETRY_DELAY", &cfg.MaxRetryDelay},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, *d.dst); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LARK_MAX_RETRIES", &cfg.MaxRetries},
		{"LARK_MAX_CONNECTIONS", &cfg.MaxConnections},
		{"LARK_MAX_IDLE_CONNECTIONS", &cfg.MaxIdleConnections},
		{"LARK_LOG_FILE_MAX_SIZE_MB", &cfg.LogFileMaxSizeMB},
		{"LARK_LOG_FILE_MAX_BACKUPS", &cfg.LogFileMaxBackups},
		{"LARK_LOG_FILE_MAX_AGE_DAYS", &cfg.LogFileMaxAgeDays},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, *i.dst); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.CredentialKind, validation.Required, validation.In("tenant", "user", "app")),
		validation.Field(&c.WebhookURL, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.InitialRetryDelay, validation.Required),
		validation.Field(&c.MaxRetryDelay, validation.Required, validation.Min(c.InitialRetryDelay)),
		validation.Field(&c.MaxConnections, validation.Min(1)),
		validation.Field(&c.MaxIdleConnections, validation.Min(0)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.EventPath, validation.Required, validation.By(leadingSlash)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireAppCredentials reports an error when the app id or secret is missing.
// Only consumers that call authenticated endpoints need them.
func (c *Config) RequireAppCredentials() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.AppID, validation.Required),
		validation.Field(&c.AppSecret, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("LARK_APP_ID and LARK_APP_SECRET are required: %w", err)
	}
	return nil
}

func leadingSlash(value interface{}) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("must start with /")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("8s", "500ms") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return n, nil
}
