package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/itsChris/qrcomposer/internal/certs"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/matrix"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "QRCOMPOSER_"

// Config holds all configuration for qrcomposer.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Render   RenderConfig   `koanf:"render"`
	TLS      TLSConfig      `koanf:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen  string `koanf:"listen"`
	DevMode bool   `koanf:"dev_mode"`

	// RateLimit is the number of compositions one client may request per
	// minute. Zero means unlimited.
	RateLimit int `koanf:"rate_limit"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig sizes the compose memo cache. Zero disables it.
type CacheConfig struct {
	Size int `koanf:"size"`
}

// RenderConfig holds the defaults applied when a request leaves them out.
type RenderConfig struct {
	Size            float64 `koanf:"size"`
	Level           string  `koanf:"level"`
	Color           string  `koanf:"color"`
	BackgroundColor string  `koanf:"background_color"`
	QuietZone       float64 `koanf:"quiet_zone"`
}

// TLSConfig selects how the server obtains its certificate.
type TLSConfig struct {
	Mode     string `koanf:"mode"`
	Domain   string `koanf:"domain"`
	Email    string `koanf:"email"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	Dir      string `koanf:"dir"`

	// HTTPListen, when set, serves ACME challenges and redirects to HTTPS.
	HTTPListen string `koanf:"http_listen"`
}

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// not configuration.
var flagKeys = map[string]string{
	"listen":     "server.listen",
	"dev-mode":   "server.dev_mode",
	"db":         "database.path",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"cache-size": "cache.size",
	"tls-mode":   "tls.mode",
}

// Load reads configuration with priority: flags > env > yaml file > defaults.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults.
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// 2. Load YAML config file (if given).
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// 3. Load environment variables. QRCOMPOSER_RENDER_QUIET_ZONE maps to
	// render.quiet_zone: the first underscore separates section and key.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	// 4. Load CLI flags (highest priority). Unchanged flags keep the
	// values loaded so far.
	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + key
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.listen":           "127.0.0.1:8080",
		"server.dev_mode":         false,
		"server.rate_limit":       0,
		"database.path":           "qrcomposer.db",
		"logging.level":           "info",
		"logging.format":          "json",
		"cache.size":              256,
		"render.size":             100.0,
		"render.level":            "M",
		"render.color":            "black",
		"render.background_color": "white",
		"render.quiet_zone":       0.0,
		"tls.mode":                "off",
		"tls.dir":                 "certs",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size))
	}
	if !(c.Render.Size > 0) {
		errs = append(errs, fmt.Errorf("render.size must be positive, got %v", c.Render.Size))
	}
	if _, err := matrix.ParseLevel(c.Render.Level); err != nil {
		errs = append(errs, fmt.Errorf("render.level: %w", err))
	}
	if c.Render.QuietZone < 0 {
		errs = append(errs, fmt.Errorf("render.quiet_zone must not be negative, got %v", c.Render.QuietZone))
	}
	if _, err := certs.ParseMode(c.TLS.Mode); err != nil {
		errs = append(errs, fmt.Errorf("tls.mode: %w", err))
	}
	return errors.Join(errs...)
}
