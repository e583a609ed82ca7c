package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/Payline/internal/pkg/env"
	"github.com/ManuelReschke/Payline/internal/pkg/logger"
)

// Config is the process configuration, loaded once at startup and passed to
// the components that need it.
type Config struct {
	AppEnv  string `validate:"oneof=dev test prod"`
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`
	AppURL  string `validate:"required,url"`

	Log      logger.Config
	Database DatabaseConfig
	Cache    CacheConfig
	Stripe   StripeConfig
	Identity IdentityConfig
	Admin    AdminConfig
	Archive  ArchiveConfig
	Mail     MailConfig
	Limits   LimitsConfig

	HCaptchaSecret     string
	ContactNotifyEmail string `validate:"omitempty,email"`
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
}

// DSN returns the go-sql-driver/mysql data source name.
func (d DatabaseConfig) DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL returns the golang-migrate database URL.
func (d DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type CacheConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,min=1,max=65535"`
	Password string
	Database int `validate:"min=0"`
}

// Addr returns host:port for go-redis.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StripeConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string
	// APIURL overrides the provider API base URL (stripe-mock, tests).
	APIURL  string `validate:"omitempty,url"`
	Timeout time.Duration
}

type IdentityConfig struct {
	JWKSURL           string `validate:"required,url"`
	Issuer            string
	AuthorizedParties []string
	WebhookSecret     string
	KeyCacheTTL       time.Duration
}

type AdminConfig struct {
	// APIKeyHash is a bcrypt hash of the admin API key. Admin routes are
	// rejected when it is empty.
	APIKeyHash string
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	EndpointURL     string `validate:"omitempty,url"`
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Enabled reports whether webhook archiving to S3 is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

type LimitsConfig struct {
	ContactMax       int           `validate:"min=1"`
	ContactWindow    time.Duration `validate:"min=1s"`
	NewsletterMax    int           `validate:"min=1"`
	NewsletterWindow time.Duration `validate:"min=1s"`
	APIMax           int           `validate:"min=1"`
	APIWindow        time.Duration `validate:"min=1s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	appEnv := env.GetEnv("APP_ENV", "prod")
	cfg := &Config{
		AppEnv:  appEnv,
		AppHost: env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
		AppURL:  env.GetEnv("APP_URL", "http://localhost:5173"),
		Log: logger.Config{
			Level: env.GetEnv("LOG_LEVEL", "info"),
			Dev:   env.GetEnvBool("LOG_DEV", appEnv == "dev"),
		},
		Database: DatabaseConfig{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", "payline"),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", "payline"),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnvInt("CACHE_PORT", 6379),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			Database: env.GetEnvInt("CACHE_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIURL:        env.GetEnv("STRIPE_API_URL", ""),
			Timeout:       env.GetEnvDuration("STRIPE_TIMEOUT", 20*time.Second),
		},
		Identity: IdentityConfig{
			JWKSURL:           env.GetEnv("IDENTITY_JWKS_URL", ""),
			Issuer:            env.GetEnv("IDENTITY_ISSUER", ""),
			AuthorizedParties: splitList(env.GetEnv("IDENTITY_AUTHORIZED_PARTIES", "")),
			WebhookSecret:     env.GetEnv("IDENTITY_WEBHOOK_SECRET", ""),
			KeyCacheTTL:       env.GetEnvDuration("IDENTITY_JWKS_TTL", time.Hour),
		},
		Admin: AdminConfig{
			APIKeyHash: env.GetEnv("ADMIN_API_KEY_HASH", ""),
		},
		Archive: ArchiveConfig{
			Bucket:          env.GetEnv("ARCHIVE_S3_BUCKET", ""),
			Region:          env.GetEnv("ARCHIVE_S3_REGION", "us-east-1"),
			EndpointURL:     env.GetEnv("ARCHIVE_S3_ENDPOINT", ""),
			AccessKeyID:     env.GetEnv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          env.GetEnv("ARCHIVE_S3_PREFIX", "webhooks"),
		},
		Mail: MailConfig{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "587"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
			Sender:   env.GetEnv("SMTP_SENDER", ""),
		},
		Limits: LimitsConfig{
			ContactMax:       env.GetEnvInt("RATE_LIMIT_CONTACT_MAX", 5),
			ContactWindow:    env.GetEnvDuration("RATE_LIMIT_CONTACT_WINDOW", time.Hour),
			NewsletterMax:    env.GetEnvInt("RATE_LIMIT_NEWSLETTER_MAX", 3),
			NewsletterWindow: env.GetEnvDuration("RATE_LIMIT_NEWSLETTER_WINDOW", time.Hour),
			APIMax:           env.GetEnvInt("RATE_LIMIT_API_MAX", 100),
			APIWindow:        env.GetEnvDuration("RATE_LIMIT_API_WINDOW", 15*time.Minute),
		},
		HCaptchaSecret:     env.GetEnv("HCAPTCHA_SECRET", ""),
		ContactNotifyEmail: env.GetEnv("CONTACT_NOTIFY_EMAIL", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
