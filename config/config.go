// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// JWT signing secret and token lifetime.
	JWTSecret string
	TokenTTL  time.Duration

	// Server
	Debug      bool
	Port       string
	TLSDomains []string

	// MySQL – used only by cmd/migrate.
	MySQLDSN string

	// Collaborators. An empty EmailEndpoint disables outgoing email.
	EmailEndpoint string
	LabelBaseURL  string

	// Google Sheets roster export. Disabled unless both are set.
	SheetsSpreadsheetID string
	SheetsCredentials   string

	// Business rules
	AllowEditAfterClose bool
	TxRetries           int
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg := load()
	cfg.validate()
	return cfg
}

// LoadDB is Load for tools that only talk to the database and need no JWT secret.
func LoadDB() *Config {
	cfg := load()
	cfg.validateDB()
	return cfg
}

func load() *Config {
	v := newViper()

	// Defaults
	v.SetDefault("DB_USER", "raceops")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "raceops")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("PORT", ":9000")
	v.SetDefault("TLS_DOMAINS", "")
	v.SetDefault("DEBUG", false)
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("LABEL_BASE_URL", "/admin/etiqueta")
	v.SetDefault("ALLOW_EDIT_AFTER_CLOSE", false)
	v.SetDefault("TX_RETRIES", 5)

	return &Config{
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DBUser:              v.GetString("DB_USER"),
		DBPass:              v.GetString("DB_PASS"),
		DBHost:              v.GetString("DB_HOST"),
		DBPort:              v.GetString("DB_PORT"),
		DBName:              v.GetString("DB_NAME"),
		DBSSLMode:           v.GetString("DB_SSLMODE"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		TokenTTL:            v.GetDuration("TOKEN_TTL"),
		Debug:               v.GetBool("DEBUG"),
		Port:                v.GetString("PORT"),
		TLSDomains:          splitTrimmed(v.GetString("TLS_DOMAINS")),
		MySQLDSN:            v.GetString("MYSQL_DSN"),
		EmailEndpoint:       v.GetString("EMAIL_ENDPOINT"),
		LabelBaseURL:        v.GetString("LABEL_BASE_URL"),
		SheetsSpreadsheetID: v.GetString("GOOGLE_SHEETS_SPREADSHEET_ID"),
		SheetsCredentials:   v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		AllowEditAfterClose: v.GetBool("ALLOW_EDIT_AFTER_CLOSE"),
		TxRetries:           v.GetInt("TX_RETRIES"),
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

// SheetsEnabled reports whether roster export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.SheetsCredentials != ""
}

func (c *Config) validateDB() {
	if c.DatabaseURL == "" && c.DBPass == "" {
		log.Fatal("config: DATABASE_URL or DB_PASS must be set")
	}
	if c.TxRetries < 1 {
		c.TxRetries = 1
	}
}

func (c *Config) validate() {
	c.validateDB()
	if c.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET must be set")
	}
	if !c.Debug && len(c.TLSDomains) == 0 {
		log.Fatal("config: TLS_DOMAINS must be set outside debug mode")
	}
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
