package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PlaceholderSecret is the sample signing secret shipped in example env files.
const PlaceholderSecret = "change-this-secret"

// Config is built once at startup and passed explicitly to every component.
type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		GRPCAddr           string   `yaml:"grpc_addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
		MaxBodyBytes       int64    `yaml:"max_body_bytes"`
		// Peers (IPs or CIDRs) allowed to set X-Forwarded-For. Empty trusts none.
		TrustedProxies     []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Database struct {
		// postgres | memory
		Driver          string `yaml:"driver"`
		URL             string `yaml:"url"`
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		Name            string `yaml:"name"`
		SSLMode         string `yaml:"sslmode"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	JWT struct {
		Secret                   string `yaml:"secret"`
		Algorithm                string `yaml:"algorithm"`
		AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes"`
	} `yaml:"jwt"`

	Auth struct {
		BcryptCost int `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Rate struct {
		// memory | redis
		Backend string `yaml:"backend"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`
}

// Default returns a Config populated with development defaults.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.App.Name = "condo-api"
	c.Server.Addr = ":8000"
	c.Server.CORSAllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	c.Server.ReadTimeout = "15s"
	c.Server.WriteTimeout = "15s"
	c.Server.ShutdownTimeout = "10s"
	c.Server.MaxBodyBytes = 1 << 20
	c.Database.Driver = "postgres"
	c.Database.Host = "127.0.0.1"
	c.Database.Port = 5432
	c.Database.User = "postgres"
	c.Database.Name = "condominio_db"
	c.Database.SSLMode = "disable"
	c.Database.MaxOpenConns = 20
	c.Database.MaxIdleConns = 10
	c.Database.ConnMaxLifetime = "30m"
	c.JWT.Algorithm = "HS256"
	c.JWT.AccessTokenExpireMinutes = 60
	c.Log.Level = "info"
	c.Rate.Backend = "memory"
	c.Rate.Login.Limit = 10
	c.Rate.Login.Window = "1m"
	c.Rate.Redis.Prefix = "condo:rl:"
	return &c
}

// LoadDotEnv loads the given env files, skipping the ones that do not exist.
// Variables already present in the process environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromEnv loads .env files and then Load(CONDO_CONFIG).
func FromEnv() (*Config, error) {
	if err := LoadDotEnv(".env", ".env.local"); err != nil {
		return nil, err
	}
	return Load(os.Getenv("CONDO_CONFIG"))
}

// DatabaseDSN resolves only the database connection string from defaults and
// the environment. Tools that never sign tokens use it instead of Load.
func DatabaseDSN() (string, error) {
	if err := LoadDotEnv(".env", ".env.local"); err != nil {
		return "", err
	}
	c := Default()
	c.applyEnvOverrides()
	dsn := c.DSN()
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL or DB_HOST/DB_NAME is required")
	}
	return dsn, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	secret := strings.TrimSpace(c.JWT.Secret)
	if secret == "" {
		return errors.New("config: JWT_SECRET_KEY is required")
	}
	if secret == PlaceholderSecret && !c.IsDev() {
		return errors.New("config: JWT_SECRET_KEY still holds the placeholder value")
	}
	switch strings.ToUpper(c.JWT.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("config: JWT_ALGORITHM %q is not an HMAC algorithm", c.JWT.Algorithm)
	}
	if c.JWT.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: JWT_ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	durations := []struct{ key, value string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"database.conn_max_lifetime", c.Database.ConnMaxLifetime},
		{"RATE_LOGIN_WINDOW", c.Rate.Login.Window},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			return fmt.Errorf("config: %s: invalid duration %q", d.key, d.value)
		}
	}
	switch c.Database.Driver {
	case "postgres":
		if c.DSN() == "" {
			return errors.New("config: DATABASE_URL or DB_HOST/DB_NAME is required")
		}
	case "memory":
		if !c.IsDev() {
			return errors.New("config: DB_DRIVER=memory is only allowed in dev")
		}
	default:
		return fmt.Errorf("config: DB_DRIVER %q must be postgres or memory", c.Database.Driver)
	}
	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Redis.Addr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis rate limiter")
		}
	default:
		return fmt.Errorf("config: RATE_BACKEND %q must be memory or redis", c.Rate.Backend)
	}
	if c.Rate.Login.Limit <= 0 {
		return errors.New("config: RATE_LOGIN_LIMIT must be positive")
	}
	return nil
}

// IsDev reports whether the app runs in the development environment.
func (c *Config) IsDev() bool {
	return c.App.Env == "" || strings.EqualFold(c.App.Env, "dev")
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL from parts.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else if c.Database.User != "" {
		u.User = url.User(c.Database.User)
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.Database.SSLMode}}.Encode()
	}
	return u.String()
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) LoginWindow() time.Duration { return mustDur(c.Rate.Login.Window) }
func (c *Config) ReadTimeout() time.Duration { return mustDur(c.Server.ReadTimeout) }
func (c *Config) WriteTimeout() time.Duration { return mustDur(c.Server.WriteTimeout) }
func (c *Config) ShutdownTimeout() time.Duration { return mustDur(c.Server.ShutdownTimeout) }
func (c *Config) ConnMaxLifetime() time.Duration { return mustDur(c.Database.ConnMaxLifetime) }

// mustDur is only used after Validate has accepted the value.
func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}
	if v, ok := getEnvStr("HTTP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("GRPC_ADDR"); ok {
		c.Server.GRPCAddr = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	if v, ok := getEnvStr("DB_DRIVER"); ok {
		c.Database.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := getEnvStr("DB_HOST"); ok {
		c.Database.Host = v
	}
	if v, ok := getEnvInt("DB_PORT"); ok {
		c.Database.Port = v
	}
	if v, ok := getEnvStr("DB_USER"); ok {
		c.Database.User = v
	}
	if v, ok := getEnvStr("DB_PASSWORD"); ok {
		c.Database.Password = v
	}
	if v, ok := getEnvStr("DB_NAME"); ok {
		c.Database.Name = v
	}
	if v, ok := getEnvStr("DB_SSLMODE"); ok {
		c.Database.SSLMode = v
	}
	if v, ok := getEnvInt("DB_MAX_OPEN_CONNS"); ok {
		c.Database.MaxOpenConns = v
	}
	if v, ok := getEnvInt("DB_MAX_IDLE_CONNS"); ok {
		c.Database.MaxIdleConns = v
	}

	if v, ok := getEnvStr("JWT_SECRET_KEY"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ALGORITHM"); ok {
		c.JWT.Algorithm = v
	}
	if v, ok := getEnvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES"); ok {
		c.JWT.AccessTokenExpireMinutes = v
	}
	if v, ok := getEnvInt("AUTH_BCRYPT_COST"); ok {
		c.Auth.BcryptCost = v
	}

	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if c.Log.Env == "" {
		c.Log.Env = c.App.Env
	}

	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvCSV(key string) ([]string, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}
