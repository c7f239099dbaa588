// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is loaded once at startup and passed down by value.
type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`

	JWTSecret  string `mapstructure:"jwt_secret"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`

	DatabaseURL    string `mapstructure:"database_url"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
	RedisAddr      string `mapstructure:"redis_addr"`

	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	AuditLogFile   string `mapstructure:"audit_log_file"`
	AuditQueueSize int    `mapstructure:"audit_queue_size"`

	RegisterRateLimit  int           `mapstructure:"register_rate_limit"`
	RegisterRateWindow time.Duration `mapstructure:"register_rate_window"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For is believed.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

var defaults = map[string]any{
	"http_addr":            "",
	"port":                 "5000",
	"shutdown_timeout":     "10s",
	"max_body_bytes":       1 << 20,
	"jwt_secret":           "",
	"bcrypt_cost":          10,
	"database_url":         "",
	"migrate_on_start":     false,
	"redis_addr":           "",
	"log_level":            "info",
	"log_format":           "json",
	"audit_log_file":       "logs/app.log",
	"audit_queue_size":     1024,
	"register_rate_limit":  5,
	"register_rate_window": "10m",
	"cors_allowed_origins": "*",
	"trusted_proxies":      "",
}

type loader struct {
	configFile string
	envFile    string
}

// Option adjusts where Load looks for files.
type Option func(*loader)

// WithConfigFile reads settings from a YAML file. An explicit file that
// cannot be read is an error.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.configFile = path }
}

// WithEnvFile overrides the default ".env" path. Missing files are ignored.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// Load resolves the configuration and validates it.
func Load(opts ...Option) (Config, error) {
	l := loader{envFile: ".env"}
	for _, opt := range opts {
		opt(&l)
	}

	if l.envFile != "" {
		if _, err := os.Stat(l.envFile); err == nil {
			// Existing environment variables win over the file.
			if err := godotenv.Load(l.envFile); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", l.envFile, err)
			}
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", l.configFile, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	}
	c.CORSAllowedOrigins = splitList(c.CORSAllowedOrigins)
	c.TrustedProxies = splitList(c.TrustedProxies)
}

// splitList flattens comma-separated entries, as env vars arrive as one string.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RegisterRateLimit <= 0 {
		errs = append(errs, errors.New("REGISTER_RATE_LIMIT must be positive"))
	}
	if c.RegisterRateWindow <= 0 {
		errs = append(errs, errors.New("REGISTER_RATE_WINDOW must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSAllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
