package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadDefaults runs Load from an empty directory so neither a config
// file nor stray env vars leak into the result.
func loadDefaults(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "margincraft-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "margincraft", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SnapshotTTL)
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins, "no cross-origin access until configured")
}

func TestLoadDefaultMarginPolicy(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "50", cfg.Margin.GoodAt)
	assert.Equal(t, "60", cfg.Margin.BetterAt)
	assert.Equal(t, "70", cfg.Margin.BestAt)
	assert.Equal(t, "40", cfg.Margin.DeclineBelow)
	assert.Equal(t, "50", cfg.Margin.ParticipateAt)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MARGINCRAFT_DATABASE_HOST", "db.internal")
	t.Setenv("MARGINCRAFT_DATABASE_PORT", "5433")
	t.Setenv("MARGINCRAFT_MARGIN_GOOD_AT", "55")

	cfg := loadDefaults(t)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "55", cfg.Margin.GoodAt)
}

func TestValidateConnectionPool(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Database.MaxIdleConns = 50
	cfg.Database.MaxOpenConns = 25

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_idle_conns")
}

func TestValidateSamplingRatio(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Telemetry.SamplingRatio = 1.5

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling_ratio")
}

func TestValidateProduction(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.App.Env = "production"

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")

	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Database.Password = "secret"
	cfg.Database.SSLMode = "require"
	require.NoError(t, cfg.validate())

	cfg.HTTP.CORSAllowOrigins = []string{"*"}
	assert.Error(t, cfg.validate())
}

func TestDSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "app user",
		Password: "p@ss:word/1",
		DBName:   "margincraft",
		SSLMode:  "disable",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "app%20user")
	assert.NotContains(t, dsn, "p@ss:word/1")
	assert.Contains(t, dsn, "sslmode=disable")
}
