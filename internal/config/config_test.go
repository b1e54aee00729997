package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cr3t")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://condo.example, http://localhost:3000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "p@ss")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, c.Server.TrustedProxies)
	assert.Equal(t, ":8000", c.Server.Addr)
	assert.Equal(t, 15*time.Minute, c.TokenTTL())
	assert.Equal(t, time.Minute, c.LoginWindow())
	assert.Equal(t, []string{"https://condo.example", "http://localhost:3000"}, c.Server.CORSAllowedOrigins)
	assert.Equal(t, "postgres://postgres:p%40ss@db:5432/condominio_db?sslmode=disable", c.DSN())
	assert.Equal(t, "dev", c.Log.Env)
}

func TestDatabaseURLWins(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cr3t")
	t.Setenv("DATABASE_URL", "postgres://u@h/db")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", c.DSN())
}

func TestDatabaseDSNWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("DATABASE_URL", "postgres://migrator@db/condo")
	dsn, err := DatabaseDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://migrator@db/condo", dsn)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "condo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
server:
  addr: ":9000"
jwt:
  secret: from-yaml
  algorithm: HS512
rate:
  login:
    limit: 3
    window: 30s
`), 0o600))
	t.Setenv("HTTP_ADDR", ":9100")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", c.Server.Addr)
	assert.Equal(t, "from-yaml", c.JWT.Secret)
	assert.Equal(t, "HS512", c.JWT.Algorithm)
	assert.Equal(t, 3, c.Rate.Login.Limit)
	assert.Equal(t, 30*time.Second, c.LoginWindow())
	assert.False(t, c.IsDev())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"missing secret":        func(c *Config) { c.JWT.Secret = "" },
		"placeholder in prod":   func(c *Config) { c.App.Env = "prod"; c.JWT.Secret = PlaceholderSecret },
		"asymmetric algorithm":  func(c *Config) { c.JWT.Algorithm = "RS256" },
		"non-positive ttl":      func(c *Config) { c.JWT.AccessTokenExpireMinutes = 0 },
		"bad duration":          func(c *Config) { c.Rate.Login.Window = "soon" },
		"unknown rate backend":  func(c *Config) { c.Rate.Backend = "memcached" },
		"redis without address": func(c *Config) { c.Rate.Backend = "redis" },
		"zero login limit":      func(c *Config) { c.Rate.Login.Limit = 0 },
		"unknown db driver":     func(c *Config) { c.Database.Driver = "sqlite" },
		"memory outside dev":    func(c *Config) { c.App.Env = "prod"; c.Database.Driver = "memory" },
		"postgres without host": func(c *Config) { c.Database.Host = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.JWT.Secret = "ok"
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.JWT.Secret = PlaceholderSecret
	assert.NoError(t, c.Validate(), "placeholder secret is tolerated in dev")

	c.Database.Driver = "memory"
	c.Database.Host = ""
	assert.NoError(t, c.Validate())
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONDO_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CONDO_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "loaded", os.Getenv("CONDO_DOTENV_PROBE"))
}
