package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("qrcomposer %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, "version")
	if !strings.HasPrefix(out, "qrcomposer dev\n") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestPathCmd(t *testing.T) {
	out := mustRun(t, "path", "--size", "210", "Hello World")

	var res qrpath.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.CellSize != 10 {
		t.Errorf("expected cell size 10, got %v", res.CellSize)
	}

	m, err := matrix.Encode("Hello World", matrix.M)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want, err := composer.Generate(m, 210, nil, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Path != want.Path {
		t.Error("path output differs from a direct generation with defaults")
	}
}

func TestPathCmdStyleFlags(t *testing.T) {
	plain := mustRun(t, "path", "Hello World")
	styled := mustRun(t, "path", "--pattern-connected", "--pattern-radius", "1", "--marker-radius", "0.5", "Hello World")
	if plain == styled {
		t.Error("style flags had no effect on the path")
	}
	if !strings.Contains(styled, " a") {
		t.Error("rounded style should emit arcs")
	}
}

func TestPathCmdArgs(t *testing.T) {
	if _, err := run(t, "", "path"); err == nil {
		t.Error("expected error without a payload")
	}
	if _, err := run(t, "", "path", "--size", "-1", "x"); err == nil {
		t.Error("expected error for a negative size")
	}
	if _, err := run(t, "", "path", "--level", "Z", "x"); err == nil {
		t.Error("expected error for an unknown level")
	}
	for _, args := range [][]string{
		{"--size", "NaN"},
		{"--size", "Inf"},
		{"--pattern-radius", "NaN"},
		{"--marker-radius", "Inf"},
	} {
		if _, err := run(t, "", append(append([]string{"path"}, args...), "x")...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
	if _, err := run(t, "", "svg", "--quiet-zone", "NaN", "x"); err == nil {
		t.Error("expected error for a NaN quiet zone")
	}
}

func TestPathCmdContentsStdin(t *testing.T) {
	fromContents, err := run(t, `{"type":"url","url":"https://example.com"}`, "path", "--contents", "-")
	if err != nil {
		t.Fatalf("path --contents: %v", err)
	}
	fromValue := mustRun(t, "path", "https://example.com")
	if fromContents != fromValue {
		t.Error("structured contents should compose the same as the encoded value")
	}
}

func TestSVGCmd(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "code.svg")
	logoPath := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(logoPath, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "svg", "--size", "210", "--quiet-zone", "2", "--gradient", "red,blue",
		"--logo", logoPath, "-o", output, "Hello World")

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		`viewBox="-2 -2 214 214"`,
		`url(#grad)`,
		`data:image/png;base64,cG5n`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestSVGCmdStdout(t *testing.T) {
	out := mustRun(t, "svg", "Hello World")
	if !strings.HasPrefix(out, "<svg") {
		t.Errorf("expected an svg document on stdout, got %.40q", out)
	}
}

func TestEncodeCmd(t *testing.T) {
	out, err := run(t, `{"type":"wifi","ssid":"home","password":"secret","security":"WPA"}`, "encode")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out != "WIFI:T:WPA;S:home;P:secret;;\n" {
		t.Errorf("unexpected payload %q", out)
	}

	if _, err := run(t, `{"type":"fax"}`, "encode"); err == nil {
		t.Error("expected error for an unknown contents type")
	}
}

func TestPresetCmds(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "presets.db")
	in := filepath.Join(dir, "in.yaml")
	err := os.WriteFile(in, []byte(`presets:
  - name: rounded
    description: soft corners
    style:
      error_correction_level: H
      pattern_options:
        connected: true
        corner_radius: 1
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	if out := mustRun(t, "--db", dbPath, "preset", "import", in); out != "imported 1 presets\n" {
		t.Errorf("unexpected import output %q", out)
	}
	if out := mustRun(t, "--db", dbPath, "preset", "list"); !strings.Contains(out, "rounded") || !strings.Contains(out, "soft corners") {
		t.Errorf("list output missing preset: %q", out)
	}

	withPreset := mustRun(t, "--db", dbPath, "path", "--preset", "rounded", "Hello World")
	explicit := mustRun(t, "path", "--level", "H", "--pattern-connected", "--pattern-radius", "1", "Hello World")
	if withPreset != explicit {
		t.Error("preset should compose the same as the equivalent flags")
	}
	if _, err := run(t, "", "--db", dbPath, "path", "--preset", "missing", "x"); err == nil {
		t.Error("expected error for an unknown preset")
	}

	exported := filepath.Join(dir, "out.yaml")
	mustRun(t, "--db", dbPath, "preset", "export", exported)
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "name: rounded") {
		t.Errorf("export missing preset:\n%s", data)
	}

	mustRun(t, "--db", dbPath, "preset", "delete", "rounded")
	if _, err := run(t, "", "--db", dbPath, "preset", "delete", "rounded"); err == nil {
		t.Error("expected error deleting a missing preset")
	}
	if out := mustRun(t, "--db", dbPath, "preset", "list"); out != "no presets\n" {
		t.Errorf("unexpected list output %q", out)
	}
}

func TestConfigCheck(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	out := mustRun(t, "--db", dbPath, "config", "check")
	if !strings.Contains(out, "config: ok") || !strings.Contains(out, "does not exist yet") {
		t.Errorf("unexpected output %q", out)
	}

	mustRun(t, "--db", dbPath, "preset", "list")
	out = mustRun(t, "--db", dbPath, "config", "check")
	if !strings.Contains(out, "database: ok") {
		t.Errorf("expected integrity result, got %q", out)
	}
}

func TestDiagnoseCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "diag.db")
	mustRun(t, "--db", dbPath, "preset", "list")

	out := mustRun(t, "--db", dbPath, "diagnose", "--json")
	var report struct {
		Checks   []struct{ Status, Message string } `json:"checks"`
		Database struct {
			Accessible bool `json:"accessible"`
		} `json:"database"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if !report.Database.Accessible {
		t.Error("expected the database to be inspected")
	}
	if len(report.Checks) == 0 {
		t.Error("expected checks in the report")
	}
}
