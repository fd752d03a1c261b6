// Package render wraps a generated QR path in a standalone SVG document
// with background, quiet zone, optional gradient fill and optional logo.
package render

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itsChris/qrcomposer/internal/logo"
	"github.com/itsChris/qrcomposer/internal/qrpath"
)

// Default colours and gradient direction.
const (
	DefaultColor           = "black"
	DefaultBackgroundColor = "white"
)

// DefaultGradientDirection runs from the top-left to the bottom-right.
var DefaultGradientDirection = [4]string{"0%", "0%", "100%", "100%"}

// Document describes everything around the path itself.
type Document struct {
	Color           string  `json:"color,omitempty" yaml:"color,omitempty"`
	BackgroundColor string  `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	QuietZone       float64 `json:"quiet_zone,omitempty" yaml:"quiet_zone,omitempty"`
	// LinearGradient replaces Color with a two-stop gradient when set.
	LinearGradient    *[2]string `json:"linear_gradient,omitempty" yaml:"linear_gradient,omitempty"`
	GradientDirection *[4]string `json:"gradient_direction,omitempty" yaml:"gradient_direction,omitempty"`
	Logo              *Logo      `json:"logo,omitempty" yaml:"-"`
}

// Logo is an image placed in the centre of the code. Data is embedded as a
// data URI without being decoded.
type Logo struct {
	Data      []byte     `json:"data"`
	MediaType string     `json:"media_type"`
	Style     logo.Style `json:"style"`
}

// SVG writes the document for res, drawn at size x size.
func SVG(w io.Writer, res qrpath.Result, size float64, doc Document) error {
	color := doc.Color
	if color == "" {
		color = DefaultColor
	}
	background := doc.BackgroundColor
	if background == "" {
		background = DefaultBackgroundColor
	}
	q := doc.QuietZone
	full := size + q*2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s" width="%s" height="%s">`,
		num(-q), num(-q), num(full), num(full), num(size), num(size))

	fill := attr(color)
	if g := doc.LinearGradient; g != nil {
		dir := DefaultGradientDirection
		if doc.GradientDirection != nil {
			dir = *doc.GradientDirection
		}
		fmt.Fprintf(&sb, `<defs><linearGradient id="grad" x1="%s" y1="%s" x2="%s" y2="%s">`,
			attr(dir[0]), attr(dir[1]), attr(dir[2]), attr(dir[3]))
		fmt.Fprintf(&sb, `<stop offset="0" stop-color="%s" stop-opacity="1"/>`, attr(g[0]))
		fmt.Fprintf(&sb, `<stop offset="1" stop-color="%s" stop-opacity="1"/>`, attr(g[1]))
		sb.WriteString(`</linearGradient></defs>`)
		fill = "url(#grad)"
	}

	fmt.Fprintf(&sb, `<g><rect x="%s" y="%s" width="%s" height="%s" fill="%s"/></g>`,
		num(-q), num(-q), num(full), num(full), attr(background))
	fmt.Fprintf(&sb, `<g><path d="%s" fill="%s" fill-rule="evenodd"/></g>`, attr(res.Path), fill)

	if doc.Logo != nil {
		writeLogo(&sb, size, doc.Logo)
	}
	sb.WriteString(`</svg>`)

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("render: write svg: %w", err)
	}
	return nil
}

const (
	backgroundClipID = "logo-background-clip-path"
	logoClipID       = "logo-clip-path"
)

func writeLogo(sb *strings.Builder, size float64, l *Logo) {
	p := logo.Layout(size, l.Style)

	fmt.Fprintf(sb, `<g transform="translate(%s %s)">`, num(p.Position), num(p.Position))
	sb.WriteString(`<defs>`)
	fmt.Fprintf(sb, `<clipPath id="%s"><rect width="%s" height="%s" rx="%s" ry="%s"/></clipPath>`,
		backgroundClipID, num(p.BackgroundSize), num(p.BackgroundSize), num(p.BackgroundRadius), num(p.BackgroundRadius))
	fmt.Fprintf(sb, `<clipPath id="%s"><rect width="%s" height="%s" rx="%s" ry="%s"/></clipPath>`,
		logoClipID, num(p.Size), num(p.Size), num(p.Radius), num(p.Radius))
	sb.WriteString(`</defs>`)
	fmt.Fprintf(sb, `<g><rect width="%s" height="%s" fill="%s" clip-path="url(#%s)"/></g>`,
		num(p.BackgroundSize), num(p.BackgroundSize), attr(p.BackgroundColor), backgroundClipID)
	fmt.Fprintf(sb, `<g transform="translate(%s %s)">`, num(p.Offset), num(p.Offset))
	fmt.Fprintf(sb, `<image width="%s" height="%s" href="%s" clip-path="url(#%s)"/>`,
		num(p.Size), num(p.Size), attr(dataURI(l)), logoClipID)
	sb.WriteString(`</g></g>`)
}

func dataURI(l *Logo) string {
	mediaType := l.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(l.Data)
}

func num(f float64) string {
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// attr escapes s for use inside a double-quoted attribute.
func attr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
