// Package debug builds the diagnostic report printed by "qrcomposer diagnose".
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/itsChris/qrcomposer/internal/certs"
	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/config"
	"github.com/itsChris/qrcomposer/internal/db"
	"github.com/itsChris/qrcomposer/internal/matrix"
)

// CheckStatus represents the result of a diagnostic check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds one diagnostic check outcome.
type CheckResult struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// DBStats holds database statistics for diagnostics.
type DBStats struct {
	Path          string         `json:"path"`
	Accessible    bool           `json:"accessible"`
	SchemaVersion int            `json:"schema_version"`
	Tables        map[string]int `json:"tables,omitempty"`
}

// DiagnoseResult holds the complete diagnostic report.
type DiagnoseResult struct {
	Version   string        `json:"version"`
	GoVersion string        `json:"go_version"`
	OS        string        `json:"os"`
	Arch      string        `json:"arch"`
	Checks    []CheckResult `json:"checks"`
	DBStats   DBStats       `json:"database"`
}

// Failed reports whether any check failed.
func (r DiagnoseResult) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

// Config holds dependencies for the diagnose command.
type Config struct {
	Version  string
	Settings *config.Config
	// DB is nil when the database file does not exist yet.
	DB         *db.DB
	JSONOutput bool
	Writer     io.Writer
	// Now is the reference time for certificate expiry. Zero means now.
	Now time.Time
}

// selfTestPayload is composed at every level by the render check.
const selfTestPayload = "https://example.com/qrcomposer-diagnose"

// certWarnBefore flags certificates this close to expiry.
const certWarnBefore = 14 * 24 * time.Hour

// Run executes all diagnostic checks, writes the report and returns it.
func Run(ctx context.Context, cfg Config) (DiagnoseResult, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	result := DiagnoseResult{
		Version:   cfg.Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		DBStats:   DBStats{Path: cfg.Settings.Database.Path},
	}
	result.Checks = runChecks(ctx, cfg, &result.DBStats)

	if cfg.JSONOutput {
		enc := json.NewEncoder(cfg.Writer)
		enc.SetIndent("", "  ")
		return result, enc.Encode(result)
	}
	return result, writeTextReport(cfg.Writer, result)
}

func runChecks(ctx context.Context, cfg Config, stats *DBStats) []CheckResult {
	s := cfg.Settings
	var checks []CheckResult

	checks = append(checks, checkRenderer(ctx)...)
	checks = append(checks, checkCache(s.Cache.Size))
	checks = append(checks, checkListen(s.Server.Listen, s.TLS.Mode))
	checks = append(checks, checkTLS(s.TLS, cfg.Now))
	checks = append(checks, checkDataDir(filepath.Dir(s.Database.Path)))
	checks = append(checks, checkDatabase(ctx, cfg.DB, s.Database.Path, stats)...)
	checks = append(checks, checkPresets(ctx, cfg.DB)...)

	return checks
}

// checkRenderer composes a known payload at every error-correction level.
func checkRenderer(ctx context.Context) []CheckResult {
	c := composer.New(composer.Config{})
	var results []CheckResult
	for _, level := range []matrix.Level{matrix.L, matrix.M, matrix.Q, matrix.H} {
		res, err := c.Compose(ctx, composer.Request{Value: selfTestPayload, Size: 100, Level: level})
		if err != nil {
			results = append(results, CheckResult{StatusFail, fmt.Sprintf("Composition at level %s failed: %v", level, err)})
			continue
		}
		results = append(results, CheckResult{StatusPass, fmt.Sprintf("Composition at level %s (%.0f modules)", level, 100/res.CellSize)})
	}
	return results
}

func checkCache(size int) CheckResult {
	if size == 0 {
		return CheckResult{StatusWarn, "Composition cache disabled (cache.size is 0)"}
	}
	return CheckResult{StatusPass, fmt.Sprintf("Composition cache holds %d entries", size)}
}

func checkListen(listen, tlsMode string) CheckResult {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return CheckResult{StatusFail, fmt.Sprintf("Listen address %q is invalid: %v", listen, err)}
	}
	ip := net.ParseIP(host)
	public := host == "" || (ip != nil && !ip.IsLoopback())
	if public && (tlsMode == "" || tlsMode == string(certs.ModeOff)) {
		return CheckResult{StatusWarn, fmt.Sprintf("Listening on %s without TLS", net.JoinHostPort(host, port))}
	}
	return CheckResult{StatusPass, fmt.Sprintf("Listen address %s", listen)}
}

func checkTLS(t config.TLSConfig, now time.Time) CheckResult {
	mode, err := certs.ParseMode(t.Mode)
	if err != nil {
		return CheckResult{StatusFail, err.Error()}
	}
	switch mode {
	case certs.ModeOff:
		return CheckResult{StatusPass, "TLS disabled"}
	case certs.ModeACME:
		if t.Domain == "" {
			return CheckResult{StatusFail, "ACME mode requires tls.domain"}
		}
		return CheckResult{StatusPass, fmt.Sprintf("ACME certificates for %s", t.Domain)}
	}

	path := certs.CertificatePath(certs.Config{Mode: string(mode), CertFile: t.CertFile, Dir: t.Dir})
	notAfter, err := certs.NotAfter(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && mode == certs.ModeSelfSigned:
		return CheckResult{StatusPass, "Self-signed certificate will be generated on start"}
	case err != nil:
		return CheckResult{StatusFail, fmt.Sprintf("Certificate %s unreadable: %v", path, err)}
	case !now.Before(notAfter):
		return CheckResult{StatusFail, fmt.Sprintf("Certificate %s expired on %s", path, notAfter.Format(time.DateOnly))}
	case now.Add(certWarnBefore).After(notAfter):
		return CheckResult{StatusWarn, fmt.Sprintf("Certificate %s expires on %s", path, notAfter.Format(time.DateOnly))}
	}
	return CheckResult{StatusPass, fmt.Sprintf("Certificate %s valid until %s", path, notAfter.Format(time.DateOnly))}
}

func checkDataDir(dir string) CheckResult {
	info, err := os.Stat(dir)
	if err != nil {
		return CheckResult{StatusFail, fmt.Sprintf("Data directory %s does not exist", dir)}
	}
	if !info.IsDir() {
		return CheckResult{StatusFail, fmt.Sprintf("%s is not a directory", dir)}
	}

	probe, err := os.CreateTemp(dir, ".qrcomposer-diag-*")
	if err != nil {
		return CheckResult{StatusFail, fmt.Sprintf("Data directory %s is not writable", dir)}
	}
	probe.Close()
	os.Remove(probe.Name())

	return CheckResult{StatusPass, fmt.Sprintf("Data directory %s exists and writable", dir)}
}

func checkDatabase(ctx context.Context, d *db.DB, path string, stats *DBStats) []CheckResult {
	if d == nil {
		return []CheckResult{{StatusWarn, fmt.Sprintf("Database %s does not exist yet", path)}}
	}

	var results []CheckResult
	integrity, err := d.IntegrityCheck(ctx)
	switch {
	case err != nil:
		return append(results, CheckResult{StatusFail, fmt.Sprintf("Database %s not accessible: %v", path, err)})
	case integrity != "ok":
		results = append(results, CheckResult{StatusFail, fmt.Sprintf("Database integrity check: %s", integrity)})
	default:
		results = append(results, CheckResult{StatusPass, fmt.Sprintf("Database %s passes integrity check", path)})
	}

	st, err := d.Stats(ctx)
	if err != nil {
		return append(results, CheckResult{StatusFail, fmt.Sprintf("Database statistics: %v", err)})
	}
	stats.Accessible = true
	stats.SchemaVersion = st.SchemaVersion
	stats.Tables = st.Tables
	return results
}

// checkPresets validates every stored preset and composes the self-test
// payload with it.
func checkPresets(ctx context.Context, d *db.DB) []CheckResult {
	if d == nil {
		return nil
	}
	presets, err := d.ListPresets(ctx)
	if err != nil {
		return []CheckResult{{StatusFail, fmt.Sprintf("Cannot list presets: %v", err)}}
	}

	c := composer.New(composer.Config{})
	var broken []CheckResult
	for _, p := range presets {
		if err := p.Style.Validate(); err != nil {
			broken = append(broken, CheckResult{StatusFail, fmt.Sprintf("Preset %s is invalid: %v", p.Name, err)})
			continue
		}
		if _, err := c.Compose(ctx, p.Style.Request(selfTestPayload, 100)); err != nil {
			broken = append(broken, CheckResult{StatusFail, fmt.Sprintf("Preset %s does not compose: %v", p.Name, err)})
		}
	}
	if len(broken) > 0 {
		return broken
	}
	return []CheckResult{{StatusPass, fmt.Sprintf("%d presets compose", len(presets))}}
}

func writeTextReport(w io.Writer, r DiagnoseResult) error {
	fmt.Fprintf(w, "\nqrcomposer diagnostic report\n")
	fmt.Fprintf(w, "============================\n")
	fmt.Fprintf(w, "Version:     %s\n", r.Version)
	fmt.Fprintf(w, "Go:          %s\n", r.GoVersion)
	fmt.Fprintf(w, "OS:          %s/%s\n", r.OS, r.Arch)
	fmt.Fprintf(w, "\n")

	for _, c := range r.Checks {
		fmt.Fprintf(w, "[%s] %s\n", c.Status, c.Message)
	}
	fmt.Fprintf(w, "\n")

	if r.DBStats.Accessible {
		fmt.Fprintf(w, "Database stats:\n")
		fmt.Fprintf(w, "  Path:            %s\n", r.DBStats.Path)
		fmt.Fprintf(w, "  Schema version:  %d\n", r.DBStats.SchemaVersion)
		tables := make([]string, 0, len(r.DBStats.Tables))
		for table := range r.DBStats.Tables {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(w, "  %-16s %d rows\n", table+":", r.DBStats.Tables[table])
		}
	}

	return nil
}
