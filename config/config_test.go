package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOSTFOUND_CONFIG", "DATABASE_URL", "DATA_DIR", "DB_FILE", "UPLOADS_DIR", "PORT",
		"ASSET_BACKEND", "EVENTS_BACKEND", "EVENTS_CHANNEL", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		if value, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, value) })
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()

	assert.Equal(t, 3001, cfg.ServerPort)
	assert.Equal(t, BackendSnapshot, cfg.Backend())
	assert.Equal(t, filepath.Join("data", "lost_found.db"), cfg.Database.SnapshotFile)
	assert.Equal(t, "uploads", cfg.Assets.UploadsDir)
	assert.Equal(t, "local", cfg.Assets.Backend)
	assert.Equal(t, "none", cfg.Events.Backend)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/lf?sslmode=disable")
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/lf")
	t.Setenv("UPLOADS_DIR", "/srv/uploads")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, BackendPostgres, cfg.Backend())
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "/var/lib/lf/lost_found.db", cfg.Database.SnapshotFile)
	assert.Equal(t, "/srv/uploads", cfg.Assets.UploadsDir)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigDBFileWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/var/lib/lf")
	t.Setenv("DB_FILE", "/tmp/custom.db")

	cfg := LoadConfig()
	assert.Equal(t, "/tmp/custom.db", cfg.Database.SnapshotFile)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lostfound.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: 4000
assets:
  backend: minio
  minio:
    endpoint: localhost:9000
    bucket: images
events:
  backend: rabbitmq
`), 0o600))
	t.Setenv("LOSTFOUND_CONFIG", path)
	t.Setenv("EVENTS_BACKEND", "none")

	cfg := LoadConfig()

	assert.Equal(t, 4000, cfg.ServerPort)
	assert.Equal(t, "minio", cfg.Assets.Backend)
	assert.Equal(t, "localhost:9000", cfg.Assets.Minio.Endpoint)
	assert.Equal(t, "images", cfg.Assets.Minio.Bucket)
	assert.Equal(t, "none", cfg.Events.Backend, "environment overrides the file")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := LoadConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.ServerPort = 0 }},
		{"unknown asset backend", func(c *Config) { c.Assets.Backend = "ftp" }},
		{"unknown events backend", func(c *Config) { c.Events.Backend = "kafka" }},
		{"missing snapshot path", func(c *Config) { c.Database.SnapshotFile = " " }},
		{"missing uploads dir", func(c *Config) { c.Assets.UploadsDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
