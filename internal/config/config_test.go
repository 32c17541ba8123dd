package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(writeFile(t, "config.yaml", "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "FAC", cfg.Numbering.Prefix)
	assert.Empty(t, cfg.Postgres.DSN)

	lc, err := cfg.Editor.Lines()
	require.NoError(t, err)
	assert.Equal(t, 200, lc.MaxDescriptionLength)
	assert.True(t, lc.MaxQuantity.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, lc.TotalTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, lc.DeriveQuantityFromDates)
}

func TestNewConfig_FileAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  address: ":9000"
logging:
  level: debug
session:
  ttl: 30m
editor:
  default_service_code: CONSEIL
  default_units:
    - service: CONSEIL
      unit: HEURE
  max_quantity: "500"
  copy_prefix: "Copie de "
  derive_quantity_from_dates: false
`)
	t.Setenv("FACTURATION_POSTGRES_DSN", "postgres://localhost/facturation")
	t.Setenv("FACTURATION_SERVER_ADDRESS", ":9100")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Address, "env wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "postgres://localhost/facturation", cfg.Postgres.DSN)

	lc, err := cfg.Editor.Lines()
	require.NoError(t, err)
	assert.Equal(t, "CONSEIL", lc.DefaultServiceCode)
	assert.Equal(t, map[string]string{"CONSEIL": "HEURE"}, lc.DefaultUnitsByService)
	assert.True(t, lc.MaxQuantity.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Copie de ", lc.CopyPrefix)
	assert.False(t, lc.DeriveQuantityFromDates)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "logging:\n  level: verbose\n"},
		{"zero ttl", "session:\n  ttl: 0s\n"},
		{"non numeric max quantity", "editor:\n  max_quantity: lots\n"},
		{"default unit without service", "editor:\n  default_units:\n    - unit: HEURE\n"},
		{"prefix with dash", "numbering:\n  prefix: FAC-\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeFile(t, "config.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestNewConfig_UnreadableFile(t *testing.T) {
	_, err := NewConfig(writeFile(t, "config.yaml", "server: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestExampleFiles(t *testing.T) {
	cfg, err := NewConfig(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Postgres.ListenCatalog)

	lc, err := cfg.Editor.Lines()
	require.NoError(t, err)
	assert.Equal(t, "CONSEIL", lc.DefaultServiceCode)
	assert.Equal(t, "JOUR", lc.DefaultUnitsByService["FORMATION"])
	assert.Equal(t, "Copie de ", lc.CopyPrefix)

	src, err := LoadSeedFile(filepath.Join("..", "..", "config", "catalog.example.yaml"))
	require.NoError(t, err)
	catalog, err := src.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, catalog.Validate(context.Background()))
	assert.True(t, catalog.IsUnitLinked("CONSEIL", "JOUR"))
	assert.True(t, catalog.HasService(lc.DefaultServiceCode))
}
