// Package presetfile reads and writes preset collections as YAML.
//
// A file holds a single document:
//
//	presets:
//	  - name: brand
//	    style:
//	      error_correction_level: Q
//	      pattern_options:
//	        connected: true
//	        corner_radius: 1
package presetfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/itsChris/qrcomposer/internal/db"
)

type document struct {
	Presets []db.Preset `yaml:"presets"`
}

// Decode reads presets from r. Every preset must be named, names must be
// unique, and each style must validate.
func Decode(r io.Reader) ([]db.Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("presetfile: decode: %w", err)
	}

	seen := make(map[string]bool, len(doc.Presets))
	for i, p := range doc.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("presetfile: preset %d has no name", i+1)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("presetfile: duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.Style.Validate(); err != nil {
			return nil, fmt.Errorf("presetfile: preset %q: %w", p.Name, err)
		}
	}
	return doc.Presets, nil
}

// Encode writes presets to w.
func Encode(w io.Writer, presets []db.Preset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Presets: presets}); err != nil {
		return fmt.Errorf("presetfile: encode: %w", err)
	}
	return enc.Close()
}

// Load reads the preset file at path.
func Load(path string) ([]db.Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("presetfile: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes presets to path, replacing any existing file.
func Save(path string, presets []db.Preset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("presetfile: %w", err)
	}
	if err := Encode(f, presets); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
