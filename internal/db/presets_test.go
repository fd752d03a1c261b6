package db

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/itsChris/qrcomposer/internal/qrpath"
	"github.com/itsChris/qrcomposer/internal/style"
)

func testPreset(name string) *Preset {
	qz := 8.0
	return &Preset{
		Name:        name,
		Description: "rounded blue",
		Style: style.Style{
			Level: "Q",
			DetectionMarker: &qrpath.DetectionMarkerOptions{
				CornerRadius:      qrpath.Float(0.5),
				InnerCornerRadius: qrpath.Float(0.25),
			},
			Pattern: &qrpath.PatternOptions{
				Connected:    qrpath.Bool(true),
				CornerRadius: qrpath.Float(1),
			},
			Color:          "#1d4ed8",
			QuietZone:      &qz,
			LinearGradient: &[2]string{"#1d4ed8", "#9333ea"},
		},
	}
}

func TestPresets_UpsertAndGet(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	want := testPreset("brand")
	if err := d.UpsertPreset(ctx, want); err != nil {
		t.Fatalf("upsert preset: %v", err)
	}

	got, err := d.GetPreset(ctx, "brand")
	if err != nil {
		t.Fatalf("get preset: %v", err)
	}
	if got == nil {
		t.Fatal("expected preset, got nil")
	}
	if diff := cmp.Diff(want.Style, got.Style); diff != "" {
		t.Errorf("style mismatch (-want +got):\n%s", diff)
	}
	if got.Description != want.Description {
		t.Errorf("expected description %q, got %q", want.Description, got.Description)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestPresets_GetMissing(t *testing.T) {
	d := testDB(t)

	p, err := d.GetPreset(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get preset: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for missing preset, got %+v", p)
	}
}

func TestPresets_UpsertReplaces(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.UpsertPreset(ctx, testPreset("brand")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := d.UpsertPreset(ctx, &Preset{Name: "brand", Style: style.Style{Color: "red"}}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := d.GetPreset(ctx, "brand")
	if err != nil {
		t.Fatalf("get preset: %v", err)
	}
	if diff := cmp.Diff(style.Style{Color: "red"}, got.Style); diff != "" {
		t.Errorf("style mismatch (-want +got):\n%s", diff)
	}
	if got.Description != "" {
		t.Errorf("expected description to be replaced, got %q", got.Description)
	}
}

func TestPresets_RequiresName(t *testing.T) {
	d := testDB(t)

	if err := d.UpsertPreset(context.Background(), &Preset{}); err == nil {
		t.Fatal("expected error for unnamed preset")
	}
}

func TestPresets_ListOrdered(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := d.UpsertPreset(ctx, testPreset(name)); err != nil {
			t.Fatalf("upsert %s: %v", name, err)
		}
	}

	presets, err := d.ListPresets(ctx)
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	var names []string
	for _, p := range presets {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestPresets_Delete(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.UpsertPreset(ctx, testPreset("brand")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	removed, err := d.DeletePreset(ctx, "brand")
	if err != nil {
		t.Fatalf("delete preset: %v", err)
	}
	if !removed {
		t.Error("expected preset to be removed")
	}

	removed, err = d.DeletePreset(ctx, "brand")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed {
		t.Error("expected second delete to report nothing removed")
	}
}

func TestPresets_ImportAtomic(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	batch := []Preset{*testPreset("one"), {Name: ""}}
	if err := d.ImportPresets(ctx, batch); err == nil {
		t.Fatal("expected import to fail on unnamed preset")
	}

	presets, err := d.ListPresets(ctx)
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	if len(presets) != 0 {
		t.Errorf("expected failed import to store nothing, got %d presets", len(presets))
	}

	if err := d.ImportPresets(ctx, []Preset{*testPreset("one"), *testPreset("two")}); err != nil {
		t.Fatalf("import: %v", err)
	}
	presets, err = d.ListPresets(ctx)
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	if len(presets) != 2 {
		t.Errorf("expected 2 presets, got %d", len(presets))
	}
}
