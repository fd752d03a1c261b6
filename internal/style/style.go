// Package style is the reusable look of a QR code: everything except the
// payload and the output size. Presets store a Style, requests may override
// parts of it.
package style

import (
	"fmt"
	"math"

	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/logo"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
	"github.com/itsChris/qrcomposer/internal/render"
)

// Style groups path options and document options.
type Style struct {
	Level           matrix.Level                   `json:"error_correction_level,omitempty" yaml:"error_correction_level,omitempty"`
	DetectionMarker *qrpath.DetectionMarkerOptions `json:"detection_marker_options,omitempty" yaml:"detection_marker_options,omitempty"`
	Pattern         *qrpath.PatternOptions         `json:"pattern_options,omitempty" yaml:"pattern_options,omitempty"`

	Color             string      `json:"color,omitempty" yaml:"color,omitempty"`
	BackgroundColor   string      `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	QuietZone         *float64    `json:"quiet_zone,omitempty" yaml:"quiet_zone,omitempty"`
	LinearGradient    *[2]string  `json:"linear_gradient,omitempty" yaml:"linear_gradient,omitempty"`
	GradientDirection *[4]string  `json:"gradient_direction,omitempty" yaml:"gradient_direction,omitempty"`
	Logo              *logo.Style `json:"logo_style,omitempty" yaml:"logo_style,omitempty"`
}

// Validate checks fields that cannot be fixed up by clamping.
func (s Style) Validate() error {
	if s.Level != "" {
		if _, err := matrix.ParseLevel(string(s.Level)); err != nil {
			return err
		}
	}
	if err := finite("quiet zone", s.QuietZone); err != nil {
		return err
	}
	if s.QuietZone != nil && *s.QuietZone < 0 {
		return fmt.Errorf("style: quiet zone must not be negative, got %v", *s.QuietZone)
	}
	if d := s.DetectionMarker; d != nil {
		if err := finite("detection marker corner radius", d.CornerRadius); err != nil {
			return err
		}
		if err := finite("detection marker outer corner radius", d.OuterCornerRadius); err != nil {
			return err
		}
		if err := finite("detection marker inner corner radius", d.InnerCornerRadius); err != nil {
			return err
		}
	}
	if p := s.Pattern; p != nil {
		if err := finite("pattern corner radius", p.CornerRadius); err != nil {
			return err
		}
	}
	if l := s.Logo; l != nil {
		if err := finite("logo size", l.Size); err != nil {
			return err
		}
		if err := finite("logo margin", l.Margin); err != nil {
			return err
		}
		if err := finite("logo border radius", l.BorderRadius); err != nil {
			return err
		}
	}
	return nil
}

func finite(name string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("style: %s must be a finite number, got %v", name, *v)
	}
	return nil
}

// Merge returns base with every field set in override replacing it.
// Option structs are merged field by field.
func Merge(base, override Style) Style {
	out := base
	if override.Level != "" {
		out.Level = override.Level
	}
	out.DetectionMarker = mergeMarker(base.DetectionMarker, override.DetectionMarker)
	out.Pattern = mergePattern(base.Pattern, override.Pattern)
	if override.Color != "" {
		out.Color = override.Color
	}
	if override.BackgroundColor != "" {
		out.BackgroundColor = override.BackgroundColor
	}
	if override.QuietZone != nil {
		out.QuietZone = override.QuietZone
	}
	if override.LinearGradient != nil {
		out.LinearGradient = override.LinearGradient
	}
	if override.GradientDirection != nil {
		out.GradientDirection = override.GradientDirection
	}
	if override.Logo != nil {
		out.Logo = override.Logo
	}
	return out
}

func mergeMarker(base, override *qrpath.DetectionMarkerOptions) *qrpath.DetectionMarkerOptions {
	if base == nil || override == nil {
		if override != nil {
			return override
		}
		return base
	}
	out := *base
	if override.Connected != nil {
		out.Connected = override.Connected
	}
	if override.CornerRadius != nil {
		out.CornerRadius = override.CornerRadius
	}
	if override.OuterCornerRadius != nil {
		out.OuterCornerRadius = override.OuterCornerRadius
	}
	if override.InnerCornerRadius != nil {
		out.InnerCornerRadius = override.InnerCornerRadius
	}
	return &out
}

func mergePattern(base, override *qrpath.PatternOptions) *qrpath.PatternOptions {
	if base == nil || override == nil {
		if override != nil {
			return override
		}
		return base
	}
	out := *base
	if override.Connected != nil {
		out.Connected = override.Connected
	}
	if override.CornerRadius != nil {
		out.CornerRadius = override.CornerRadius
	}
	return &out
}

// Request builds the composer input for value drawn at size.
func (s Style) Request(value string, size float64) composer.Request {
	return composer.Request{
		Value:           value,
		Size:            size,
		Level:           s.Level,
		DetectionMarker: s.DetectionMarker,
		Pattern:         s.Pattern,
	}
}

// Document builds the SVG document options. logoData may be nil, in which
// case no logo is drawn.
func (s Style) Document(logoData []byte, logoMediaType string) render.Document {
	doc := render.Document{
		Color:             s.Color,
		BackgroundColor:   s.BackgroundColor,
		LinearGradient:    s.LinearGradient,
		GradientDirection: s.GradientDirection,
	}
	if s.QuietZone != nil {
		doc.QuietZone = *s.QuietZone
	}
	if len(logoData) > 0 {
		l := &render.Logo{Data: logoData, MediaType: logoMediaType}
		if s.Logo != nil {
			l.Style = *s.Logo
		}
		doc.Logo = l
	}
	return doc
}
