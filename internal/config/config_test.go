package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("listen", "", "")
	fs.Bool("dev-mode", false, "")
	fs.String("log-level", "info", "")
	fs.Int("cache-size", 0, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:8080" {
		t.Errorf("expected default listen address, got %q", cfg.Server.Listen)
	}
	if cfg.Cache.Size != 256 {
		t.Errorf("expected cache size 256, got %d", cfg.Cache.Size)
	}
	if cfg.Render.Size != 100 || cfg.Render.Level != "M" {
		t.Errorf("unexpected render defaults %+v", cfg.Render)
	}
	if cfg.TLS.Mode != "off" || cfg.TLS.Dir != "certs" {
		t.Errorf("unexpected tls defaults %+v", cfg.TLS)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen: ":9000"
render:
  size: 300
  level: H
  quiet_zone: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("expected listen from file, got %q", cfg.Server.Listen)
	}
	if cfg.Render.Size != 300 || cfg.Render.Level != "H" || cfg.Render.QuietZone != 4 {
		t.Errorf("unexpected render config %+v", cfg.Render)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected unset keys to keep defaults, got format %q", cfg.Logging.Format)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("QRCOMPOSER_SERVER_DEV_MODE", "true")
	t.Setenv("QRCOMPOSER_RENDER_BACKGROUND_COLOR", "#eeeeee")
	t.Setenv("QRCOMPOSER_CACHE_SIZE", "16")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Server.DevMode {
		t.Error("expected dev mode from env")
	}
	if cfg.Render.BackgroundColor != "#eeeeee" {
		t.Errorf("expected background colour from env, got %q", cfg.Render.BackgroundColor)
	}
	if cfg.Cache.Size != 16 {
		t.Errorf("expected cache size 16, got %d", cfg.Cache.Size)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("QRCOMPOSER_SERVER_LISTEN", ":7000")
	t.Setenv("QRCOMPOSER_LOGGING_LEVEL", "warn")

	fs := testFlags()
	if err := fs.Parse([]string{"--listen", ":7001", "--cache-size", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":7001" {
		t.Errorf("expected flag to win, got %q", cfg.Server.Listen)
	}
	if cfg.Cache.Size != 0 {
		t.Errorf("expected explicit zero cache size, got %d", cfg.Cache.Size)
	}
	// Unchanged flag defaults must not override env.
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"QRCOMPOSER_SERVER_LISTEN":     "server.listen",
		"QRCOMPOSER_SERVER_DEV_MODE":   "server.dev_mode",
		"QRCOMPOSER_RENDER_QUIET_ZONE": "render.quiet_zone",
		"QRCOMPOSER_DEBUG":             "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Logging.Format = "xml"
	cfg.Render.Level = "Z"
	cfg.Render.Size = 0
	cfg.Cache.Size = -1
	cfg.TLS.Mode = "letsencrypt"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"logging.format", "render.level", "render.size", "cache.size", "tls.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error does not mention %s: %v", want, err)
		}
	}
}
