package qrpath

import (
	"strconv"
	"strings"

	"github.com/itsChris/qrcomposer/internal/matrix"
)

// Corners records which corners of a square are rounded.
type Corners struct {
	TopLeft     bool `json:"top_left"`
	TopRight    bool `json:"top_right"`
	BottomLeft  bool `json:"bottom_left"`
	BottomRight bool `json:"bottom_right"`
}

// AllCorners rounds every corner.
var AllCorners = Corners{TopLeft: true, TopRight: true, BottomLeft: true, BottomRight: true}

// CornersAt computes the corner rounding of the module at column x, row y
// from its four direct neighbours. A corner is rounded only when both
// sides touching it border an off module or the edge of the matrix.
func CornersAt(m matrix.Matrix, x, y int) Corners {
	topOff := !m.Get(x, y-1)
	rightOff := !m.Get(x+1, y)
	bottomOff := !m.Get(x, y+1)
	leftOff := !m.Get(x-1, y)

	return Corners{
		TopLeft:     topOff && leftOff,
		TopRight:    topOff && rightOff,
		BottomLeft:  bottomOff && leftOff,
		BottomRight: bottomOff && rightOff,
	}
}

type position struct {
	x, y int
}

// square describes one closed rounded square sub-path. The top-left
// corner sits at pos*unitSize+padding on both axes.
type square struct {
	pos      position
	size     float64
	unitSize float64
	radius   float64
	padding  float64
	corners  Corners
}

func (s square) cornerRadius(rounded bool) float64 {
	if rounded {
		return s.radius
	}
	return 0
}

// writeSquare appends the sub-path for s, drawn clockwise from just right
// of the top-left corner.
func writeSquare(sb *strings.Builder, s square) {
	tl := s.cornerRadius(s.corners.TopLeft)
	tr := s.cornerRadius(s.corners.TopRight)
	bl := s.cornerRadius(s.corners.BottomLeft)
	br := s.cornerRadius(s.corners.BottomRight)

	startX := float64(s.pos.x)*s.unitSize + s.padding + tl
	startY := float64(s.pos.y)*s.unitSize + s.padding

	r := format(s.radius)
	arc := "a" + r + "," + r + " 0 0 1 "

	sb.WriteString("M " + format(startX) + "," + format(startY) + " ")
	sb.WriteString("h " + format(s.size-tl-tr) + " ")
	if s.corners.TopRight {
		sb.WriteString(arc + r + "," + r + " ")
	}
	sb.WriteString("v " + format(s.size-tr-br) + " ")
	if s.corners.BottomRight {
		sb.WriteString(arc + "-" + r + "," + r + " ")
	}
	sb.WriteString("h -" + format(s.size-br-bl) + " ")
	if s.corners.BottomLeft {
		sb.WriteString(arc + "-" + r + ",-" + r + " ")
	}
	sb.WriteString("v -" + format(s.size-bl-tl) + " ")
	if s.corners.TopLeft {
		sb.WriteString(arc + r + ",-" + r + " ")
	}
	sb.WriteString("Z")
}

// format writes n with the fewest digits that round-trip.
func format(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
