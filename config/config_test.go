package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/race?sslmode=disable")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DEBUG", "true")
	t.Setenv("TX_RETRIES", "3")
	t.Setenv("ALLOW_EDIT_AFTER_CLOSE", "true")
	t.Setenv("TLS_DOMAINS", " a.example.com, ,b.example.com ")
	t.Setenv("EMAIL_ENDPOINT", "https://mail.example.com")

	cfg := Load()

	assert.Equal(t, "postgres://u:p@db:5432/race?sslmode=disable", cfg.PostgresDSN())
	assert.Equal(t, []byte("s3cret"), cfg.JWTKey())
	assert.True(t, cfg.Debug)
	assert.Equal(t, 3, cfg.TxRetries)
	assert.True(t, cfg.AllowEditAfterClose)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.TLSDomains)
	assert.Equal(t, "https://mail.example.com", cfg.EmailEndpoint)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.SheetsEnabled())
}

func TestPostgresDSNFromFields(t *testing.T) {
	c := &Config{DBUser: "u", DBPass: "p", DBHost: "h", DBPort: "5433", DBName: "n", DBSSLMode: "require"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=require", c.PostgresDSN())
}

func TestLoadDBClampsRetries(t *testing.T) {
	t.Setenv("DB_PASS", "p")
	t.Setenv("TX_RETRIES", "0")

	cfg := LoadDB()
	assert.Equal(t, 1, cfg.TxRetries)
	assert.Equal(t, "/admin/etiqueta", cfg.LabelBaseURL)
}
