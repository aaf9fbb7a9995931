package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Supported database/sql driver names.
const (
	DriverPQ  = "postgres"
	DriverPgx = "pgx"
)

// Config holds Postgres connection settings.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Driver:   getEnv("DB_DRIVER", DriverPQ),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "focusguard"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Validate checks the driver is one the binaries register.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPQ, DriverPgx:
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", c.Driver, DriverPQ, DriverPgx)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
