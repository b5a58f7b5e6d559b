package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a , ,http://b")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingSecretPanics(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "")
	assert.Panics(t, func() { _, _ = Load() })
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	ClientFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadClient_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backend: supabase\nsupabase-url: https://x.supabase.co\nsupabase-key: anon\ntimeout: 5s\n"), 0o600))
	t.Setenv("MEMOSYNC_SUPABASE_KEY", "from-env")

	c, err := LoadClient(newFlags(t, "--config", file, "--state", filepath.Join(dir, "s.db")))
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, c.Backend)
	assert.Equal(t, "from-env", c.SupabaseKey)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, filepath.Join(dir, "s.db"), c.StatePath)
}

func TestLoadClient_Validate(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MEMOSYNC_BACKEND", "postgres")

	_, err := LoadClient(newFlags(t))
	assert.EqualError(t, err, "database-url is required for the postgres backend")

	c, err := LoadClient(newFlags(t, "--database-url", "postgres://x"))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, c.Backend)

	_, err = LoadClient(newFlags(t, "--backend", "carrier-pigeon"))
	assert.EqualError(t, err, `unknown backend "carrier-pigeon"`)
}

func TestLoadClient_MissingExplicitFile(t *testing.T) {
	_, err := LoadClient(newFlags(t, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	assert.Error(t, err)
}
