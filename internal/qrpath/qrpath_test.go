package qrpath

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itsChris/qrcomposer/internal/matrix"
)

var update = flag.Bool("update", false, "rewrite golden files")

// noMarkers draws marker regions as plain modules.
var noMarkers = &DetectionMarkerOptions{Connected: Bool(false)}

func solid(n int) matrix.Matrix {
	rows := make([][]int, n)
	for y := range rows {
		rows[y] = make([]int, n)
		for x := range rows[y] {
			rows[y][x] = 1
		}
	}
	return matrix.FromRows(rows)
}

func TestGenerate_EmptyMatrix(t *testing.T) {
	for _, m := range []matrix.Matrix{nil, {}} {
		_, err := Generate(m, 100, nil, nil)
		if !errors.Is(err, ErrEmptyMatrix) {
			t.Fatalf("expected ErrEmptyMatrix, got %v", err)
		}
	}
	if ErrEmptyMatrix.Error() != "matrix cannot be empty" {
		t.Errorf("unexpected message %q", ErrEmptyMatrix.Error())
	}
}

func TestGenerate_SingleModule(t *testing.T) {
	res, err := Generate(matrix.FromRows([][]int{{1}}), 10, noMarkers, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.CellSize != 10 {
		t.Errorf("expected cell size 10, got %v", res.CellSize)
	}
	want := "M 0,0 h 10 a0,0 0 0 1 0,0 v 10 a0,0 0 0 1 -0,0 h -10 a0,0 0 0 1 -0,-0 v -10 a0,0 0 0 1 0,-0 Z"
	if res.Path != want {
		t.Errorf("got  %q\nwant %q", res.Path, want)
	}
}

func TestGenerate_PatternRadius(t *testing.T) {
	res, err := Generate(matrix.FromRows([][]int{{1}}), 10, noMarkers, &PatternOptions{CornerRadius: Float(1)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "M 5,0 h 0 a5,5 0 0 1 5,5 v 0 a5,5 0 0 1 -5,5 h -0 a5,5 0 0 1 -5,-5 v -0 a5,5 0 0 1 5,-5 Z"
	if res.Path != want {
		t.Errorf("got  %q\nwant %q", res.Path, want)
	}
}

func TestGenerate_RadiusClamping(t *testing.T) {
	m := matrix.FromRows([][]int{{1, 0, 1}, {0, 1, 1}, {1, 1, 0}})

	gen := func(p *PatternOptions, d *DetectionMarkerOptions) string {
		t.Helper()
		res, err := Generate(m, 30, d, p)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return res.Path
	}

	if gen(&PatternOptions{CornerRadius: Float(1.5)}, noMarkers) != gen(&PatternOptions{CornerRadius: Float(1)}, noMarkers) {
		t.Error("pattern corner radius 1.5 should behave like 1")
	}
	if gen(&PatternOptions{CornerRadius: Float(-1)}, noMarkers) != gen(&PatternOptions{CornerRadius: Float(0)}, noMarkers) {
		t.Error("pattern corner radius -1 should behave like 0")
	}

	big := solid(21)
	genMarker := func(d *DetectionMarkerOptions) string {
		t.Helper()
		res, err := Generate(big, 21, d, nil)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return res.Path
	}
	if genMarker(&DetectionMarkerOptions{CornerRadius: Float(1.5)}) != genMarker(&DetectionMarkerOptions{CornerRadius: Float(1)}) {
		t.Error("marker corner radius 1.5 should behave like 1")
	}
	if genMarker(&DetectionMarkerOptions{OuterCornerRadius: Float(-1), InnerCornerRadius: Float(7)}) !=
		genMarker(&DetectionMarkerOptions{OuterCornerRadius: Float(0), InnerCornerRadius: Float(1)}) {
		t.Error("marker outer/inner radii should be clamped to [0,1]")
	}
}

func TestGenerate_MarkerComposite(t *testing.T) {
	res, err := Generate(solid(7), 7, nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "M 0,0 h 7 a0,0 0 0 1 0,0 v 7 a0,0 0 0 1 -0,0 h -7 a0,0 0 0 1 -0,-0 v -7 a0,0 0 0 1 0,-0 Z" +
		"M 1,1 h 5 a0,0 0 0 1 0,0 v 5 a0,0 0 0 1 -0,0 h -5 a0,0 0 0 1 -0,-0 v -5 a0,0 0 0 1 0,-0 Z" +
		"M 2,2 h 3 a0,0 0 0 1 0,0 v 3 a0,0 0 0 1 -0,0 h -3 a0,0 0 0 1 -0,-0 v -3 a0,0 0 0 1 0,-0 Z"
	if res.Path != want {
		t.Errorf("got  %q\nwant %q", res.Path, want)
	}
}

func TestGenerate_MarkerRadiusFallback(t *testing.T) {
	opts := &DetectionMarkerOptions{CornerRadius: Float(1), InnerCornerRadius: Float(0)}
	res, err := Generate(solid(7), 7, opts, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	parts := strings.SplitAfter(res.Path, "Z")
	if len(parts) != 4 || parts[3] != "" {
		t.Fatalf("expected 3 sub-paths, got %q", res.Path)
	}
	if !strings.HasPrefix(parts[0], "M 3.5,0 h 0 a3.5,3.5 0 0 1 3.5,3.5 ") {
		t.Errorf("outer square should use the shared radius, got %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "M 3.5,1 h 0 a2.5,2.5 0 0 1 2.5,2.5 ") {
		t.Errorf("filler square should use the outer radius, got %q", parts[1])
	}
	if !strings.HasPrefix(parts[2], "M 2,2 h 3 a0,0 ") {
		t.Errorf("inner square should use the inner override, got %q", parts[2])
	}
}

func TestGenerate_MarkerRegionsDrawnOnce(t *testing.T) {
	m := solid(21)

	res, err := Generate(m, 21, nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 3 markers x 3 squares plus every module outside the 3 regions.
	wantSubpaths := 3*3 + 21*21 - 3*7*7
	if got := strings.Count(res.Path, "Z"); got != wantSubpaths {
		t.Errorf("expected %d sub-paths, got %d", wantSubpaths, got)
	}
	for _, anchor := range []string{"M 0,0 ", "M 14,0 ", "M 0,14 "} {
		if got := strings.Count(res.Path, anchor); got != 1 {
			t.Errorf("expected anchor %q once, got %d", anchor, got)
		}
	}
	for _, inside := range []string{"M 15,0 ", "M 6,0 ", "M 0,20 ", "M 3,16 "} {
		if strings.Contains(res.Path, inside) {
			t.Errorf("module %q inside a marker region was drawn individually", inside)
		}
	}
}

func TestGenerate_MarkersDisconnected(t *testing.T) {
	m := solid(21)

	res, err := Generate(m, 21, noMarkers, &PatternOptions{Connected: Bool(true)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := strings.Count(res.Path, "Z"); got != 21*21 {
		t.Errorf("expected every module drawn, got %d sub-paths", got)
	}
	// Interior modules of a solid block have no rounded corners.
	if !strings.Contains(res.Path, "M 3,3 h 1 v 1 h -1 v -1 Z") {
		t.Error("expected module (3,3) drawn as a sharp pattern square")
	}
}

func TestGenerate_PatternMerging(t *testing.T) {
	m := matrix.FromRows([][]int{{1, 1}, {0, 0}})

	res, err := Generate(m, 20, noMarkers, &PatternOptions{Connected: Bool(true), CornerRadius: Float(1)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "M 5,0 h 5 v 10 h -5 a5,5 0 0 1 -5,-5 v -0 a5,5 0 0 1 5,-5 Z" +
		"M 10,0 h 5 a5,5 0 0 1 5,5 v 0 a5,5 0 0 1 -5,5 h -5 v -10 Z"
	if res.Path != want {
		t.Errorf("got  %q\nwant %q", res.Path, want)
	}
}

func TestGenerate_OffModulesEmitNothing(t *testing.T) {
	res, err := Generate(matrix.FromRows([][]int{{0, 0}, {0, 0}}), 20, noMarkers, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Path != "" {
		t.Errorf("expected empty path, got %q", res.Path)
	}
}

func TestGenerate_DoesNotMutateInput(t *testing.T) {
	m := matrix.FromRows([][]int{{1, 0, 1}, {0, 1, 0}, {1, 1, 1}})
	before := matrix.FromRows([][]int{{1, 0, 1}, {0, 1, 0}, {1, 1, 1}})

	if _, err := Generate(m, 9, nil, &PatternOptions{Connected: Bool(true)}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for y := range m {
		for x := range m[y] {
			if m[y][x] != before[y][x] {
				t.Fatalf("module (%d,%d) was modified", x, y)
			}
		}
	}
}

func TestGenerate_HelloWorld(t *testing.T) {
	m, err := matrix.Encode("Hello, World!", matrix.M)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	res, err := Generate(m, 200, nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := 200.0 / float64(m.Size()); res.CellSize != want {
		t.Errorf("expected cell size %v, got %v", want, res.CellSize)
	}
	if res.CellSize <= 0 || res.Path == "" {
		t.Fatalf("expected a non-empty path, got %+v", res)
	}
	if !strings.HasPrefix(res.Path, "M 0,0 h ") {
		t.Errorf("expected the top-left marker first, got %q", res.Path[:min(len(res.Path), 40)])
	}

	again, err := Generate(m, 200, nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if again.Path != res.Path {
		t.Error("expected byte-identical output for identical input")
	}

	checkGolden(t, "hello_world_default.golden", res.Path)
}

func TestGenerate_HelloWorldStyled(t *testing.T) {
	m, err := matrix.Encode("Hello, World!", matrix.M)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Generate(m, 200,
		&DetectionMarkerOptions{OuterCornerRadius: Float(0.2), InnerCornerRadius: Float(0.3), Connected: Bool(true)},
		&PatternOptions{CornerRadius: Float(0.1), Connected: Bool(true)},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	checkGolden(t, "hello_world_styled.golden", res.Path)
}

// checkGolden compares got with testdata/name. With -update the file is
// rewritten from got instead.
func checkGolden(t *testing.T, name, got string) {
	t.Helper()
	path := filepath.Join("testdata", name)

	if *update {
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("write golden %s: %v", path, err)
		}
		t.Logf("wrote golden file %s", path)
		return
	}
	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		t.Fatalf("golden file %s is missing; run go test -update to create it", path)
	}
	if err != nil {
		t.Fatalf("read golden %s: %v", path, err)
	}
	if string(want) != got {
		t.Errorf("path differs from %s; rerun with -update if the change is intended", path)
	}
}
