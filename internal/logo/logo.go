// Package logo computes where an embedded logo sits on top of the QR code
// and how its background plate and clip shapes are sized.
package logo

// DefaultSizeRatio is the logo edge relative to the QR code when no size
// is given.
const DefaultSizeRatio = 0.2

// Style is the caller-facing logo styling. Nil fields take defaults.
type Style struct {
	Size            *float64 `json:"size,omitempty" yaml:"size,omitempty"`
	BackgroundColor string   `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	Margin          *float64 `json:"margin,omitempty" yaml:"margin,omitempty"`
	// BorderRadius rounds the logo clip directly and, as a fraction of
	// half its edge, the background plate.
	BorderRadius *float64 `json:"border_radius,omitempty" yaml:"border_radius,omitempty"`
}

// Placement is the resolved geometry, in QR code units.
type Placement struct {
	// Position is the top-left corner of the background plate on both
	// axes; the logo is always centred.
	Position         float64
	BackgroundSize   float64
	BackgroundRadius float64
	BackgroundColor  string
	// Offset is the logo's distance from the plate's top-left corner.
	Offset float64
	Size   float64
	Radius float64
}

// Layout resolves style against a QR code of edge qrSize.
func Layout(qrSize float64, style Style) Placement {
	size := qrSize * DefaultSizeRatio
	if style.Size != nil {
		size = *style.Size
	}
	margin := 0.0
	if style.Margin != nil {
		margin = *style.Margin
	}
	radius := 0.0
	if style.BorderRadius != nil {
		radius = *style.BorderRadius
	}
	bg := style.BackgroundColor
	if bg == "" {
		bg = "transparent"
	}

	backgroundSize := size + margin*2
	return Placement{
		Position:         (qrSize - size - margin*2) / 2,
		BackgroundSize:   backgroundSize,
		BackgroundRadius: radius * (backgroundSize / 2),
		BackgroundColor:  bg,
		Offset:           margin,
		Size:             size,
		Radius:           radius,
	}
}
