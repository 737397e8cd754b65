package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

var ErrMissingSessionSecret = fmt.Errorf("%w: SESSION_SECRET (or NEXTAUTH_SECRET / AUTH_SECRET) is required", apperr.ErrConfiguration)

type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	MercadoPago MercadoPagoConfig
	Session     SessionConfig
}

type AppConfig struct {
	Port        string   `envconfig:"APP_PORT" default:"8080"`
	Env         string   `envconfig:"APP_ENV" default:"development"`
	BaseURL     string   `envconfig:"APP_BASE_URL" default:"https://laofi.co"`
	AdminEmails []string `envconfig:"ADMIN_EMAILS"`
	LogLevel    string   `envconfig:"LOG_LEVEL"`
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

type PostgresConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD"`
	DBName          string        `envconfig:"DB_NAME" default:"laofi"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	Schema          string        `envconfig:"DB_SCHEMA" default:"laofi"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MigrationsPath  string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// ConnString returns DATABASE_URL when set, otherwise a keyword/value DSN built from the DB_* fields.
func (c PostgresConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the DSN in the pgx5:// form golang-migrate expects.
func (c PostgresConfig) MigrateURL() string {
	if c.URL != "" {
		for _, prefix := range []string{"postgresql://", "postgres://"} {
			if strings.HasPrefix(c.URL, prefix) {
				return "pgx5://" + strings.TrimPrefix(c.URL, prefix)
			}
		}
		return c.URL
	}

	return fmt.Sprintf("pgx5://%s@%s:%s/%s?sslmode=%s",
		url.UserPassword(c.User, c.Password).String(), c.Host, c.Port, c.DBName, c.SSLMode)
}

type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"MP_ACCESS_TOKEN"`
	APIURL      string        `envconfig:"MP_API_URL" default:"https://api.mercadopago.com"`
	Currency    string        `envconfig:"MP_CURRENCY" default:"ARS"`
	Timeout     time.Duration `envconfig:"MP_TIMEOUT" default:"15s"`
}

func (c MercadoPagoConfig) Configured() bool {
	return c.AccessToken != ""
}

type SessionConfig struct {
	Secret     string        `envconfig:"SESSION_SECRET"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	CookieName string        `envconfig:"SESSION_COOKIE" default:"session-token"`
}

// Load reads envFile (when present) into the process environment and decodes the configuration.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	// Sections are processed one by one so envconfig does not prefix keys with the field name.
	var cfg Config
	for _, section := range []any{&cfg.App, &cfg.Postgres, &cfg.MercadoPago, &cfg.Session} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process environment: %w", err)
		}
	}

	applyAliases(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyAliases honours the variable names the previous deployment used.
func applyAliases(cfg *Config) {
	if cfg.MercadoPago.AccessToken == "" {
		cfg.MercadoPago.AccessToken = strings.TrimSpace(os.Getenv("MERCADOPAGO_ACCESS_TOKEN"))
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = firstNonEmpty(os.Getenv("NEXTAUTH_SECRET"), os.Getenv("AUTH_SECRET"))
	}
	if base := strings.TrimSpace(os.Getenv("NEXT_PUBLIC_BASE_URL")); base != "" && os.Getenv("APP_BASE_URL") == "" {
		cfg.App.BaseURL = base
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")

	emails := make([]string, 0, len(cfg.App.AdminEmails))
	for _, e := range cfg.App.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	cfg.App.AdminEmails = emails
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return ErrMissingSessionSecret
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("%w: SESSION_TTL must be positive", apperr.ErrConfiguration)
	}
	if c.App.BaseURL == "" {
		return fmt.Errorf("%w: APP_BASE_URL is required", apperr.ErrConfiguration)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
