// Package qrpath turns a QR module matrix into a single SVG path.
//
// The three detection markers can be drawn as merged concentric rounded
// squares and neighbouring pattern modules can be merged into rounded
// blobs. The resulting path relies on the even-odd fill rule so that the
// nested marker squares render as rings.
package qrpath

import (
	"errors"
	"strings"

	"github.com/itsChris/qrcomposer/internal/matrix"
)

// ErrEmptyMatrix is returned when the matrix has no rows.
var ErrEmptyMatrix = errors.New("matrix cannot be empty")

const (
	defaultCornerRadius = 0.0
	maxCornerRadius     = 0.5

	// markerSize is the edge length of a detection marker in modules.
	markerSize = 7
)

// Result is the generated path together with the edge length of one
// module in output units.
type Result struct {
	CellSize float64 `json:"cell_size"`
	Path     string  `json:"path"`
}

// DetectionMarkerOptions styles the three corner detection markers.
// Radius fractions are relative to half the marker square and are clamped
// to [0,1].
type DetectionMarkerOptions struct {
	// Connected draws each marker as one composite shape. Defaults to true.
	Connected         *bool    `json:"connected,omitempty" yaml:"connected,omitempty"`
	CornerRadius      *float64 `json:"corner_radius,omitempty" yaml:"corner_radius,omitempty"`
	OuterCornerRadius *float64 `json:"outer_corner_radius,omitempty" yaml:"outer_corner_radius,omitempty"`
	InnerCornerRadius *float64 `json:"inner_corner_radius,omitempty" yaml:"inner_corner_radius,omitempty"`
}

// PatternOptions styles the data modules.
type PatternOptions struct {
	// Connected merges adjacent modules. Defaults to false.
	Connected    *bool    `json:"connected,omitempty" yaml:"connected,omitempty"`
	CornerRadius *float64 `json:"corner_radius,omitempty" yaml:"corner_radius,omitempty"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func (o *DetectionMarkerOptions) connected() bool {
	if o == nil || o.Connected == nil {
		return true
	}
	return *o.Connected
}

// radii resolves the outer and inner radius fractions. A specific
// override wins over the shared corner radius, which wins over the
// default.
func (o *DetectionMarkerOptions) radii() (outer, inner float64) {
	if o == nil {
		return defaultCornerRadius, defaultCornerRadius
	}
	outer = clamp01(coalesce(o.OuterCornerRadius, o.CornerRadius))
	inner = clamp01(coalesce(o.InnerCornerRadius, o.CornerRadius))
	return outer, inner
}

func (o *PatternOptions) connected() bool {
	if o == nil || o.Connected == nil {
		return false
	}
	return *o.Connected
}

func (o *PatternOptions) radius() float64 {
	if o == nil {
		return defaultCornerRadius
	}
	return clamp01(coalesce(o.CornerRadius))
}

// coalesce returns the first non-nil value, or the default corner radius.
func coalesce(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return defaultCornerRadius
}

func clamp01(v float64) float64 {
	// NaN compares false both ways and ends up as 0.
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Generate builds the path for m scaled so that the whole symbol spans
// size units. Nil options select the defaults. m is not modified.
func Generate(m matrix.Matrix, size float64, marker *DetectionMarkerOptions, pattern *PatternOptions) (Result, error) {
	n := m.Size()
	if n == 0 {
		return Result{}, ErrEmptyMatrix
	}

	cellSize := size / float64(n)
	patternRadius := cellSize * pattern.radius() * maxCornerRadius
	mergeMarkers := marker.connected()
	mergePattern := pattern.connected()

	var sb strings.Builder
	for y, row := range m {
		for x := 0; x < len(row); x++ {
			if mergeMarkers && inDetectionMarker(x, y, n) {
				if isDetectionMarkerAnchor(x, y, n) {
					writeDetectionMarker(&sb, position{x, y}, cellSize, marker)
					x += markerSize - 1
				}
				continue
			}
			if !row[x] {
				continue
			}
			corners := AllCorners
			if mergePattern {
				corners = CornersAt(m, x, y)
			}
			writeSquare(&sb, square{
				pos:      position{x, y},
				size:     cellSize,
				unitSize: cellSize,
				radius:   patternRadius,
				corners:  corners,
			})
		}
	}

	return Result{CellSize: cellSize, Path: sb.String()}, nil
}

func inDetectionMarker(col, row, n int) bool {
	return (row < markerSize && (col < markerSize || col >= n-markerSize)) ||
		(row >= n-markerSize && col < markerSize)
}

func isDetectionMarkerAnchor(col, row, n int) bool {
	return (row == 0 && (col == 0 || col == n-markerSize)) ||
		(row == n-markerSize && col == 0)
}

// writeDetectionMarker emits the outer 7x7 square, the 5x5 filler and the
// 3x3 centre, all anchored at pos.
func writeDetectionMarker(sb *strings.Builder, pos position, cellSize float64, opts *DetectionMarkerOptions) {
	outerFrac, innerFrac := opts.radii()

	outerSize := cellSize * 7
	fillerSize := cellSize * 5
	innerSize := cellSize * 3

	writeSquare(sb, square{
		pos:      pos,
		size:     outerSize,
		unitSize: cellSize,
		radius:   outerSize * outerFrac * maxCornerRadius,
		corners:  AllCorners,
	})
	writeSquare(sb, square{
		pos:      pos,
		size:     fillerSize,
		unitSize: cellSize,
		radius:   fillerSize * outerFrac * maxCornerRadius,
		padding:  cellSize,
		corners:  AllCorners,
	})
	writeSquare(sb, square{
		pos:      pos,
		size:     innerSize,
		unitSize: cellSize,
		radius:   innerSize * innerFrac * maxCornerRadius,
		padding:  cellSize * 2,
		corners:  AllCorners,
	})
}
