package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/config"
	"github.com/itsChris/qrcomposer/internal/contents"
	"github.com/itsChris/qrcomposer/internal/logo"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
	"github.com/itsChris/qrcomposer/internal/render"
	"github.com/itsChris/qrcomposer/internal/style"
)

// addStyleFlags registers the style options shared by path and svg.
func addStyleFlags(fs *pflag.FlagSet) {
	fs.Float64("size", 0, "edge length of the symbol (default: render.size)")
	fs.String("level", "", "error correction level L, M, Q or H (default: render.level)")
	fs.String("preset", "", "start from a stored preset")
	fs.String("contents", "", "read structured contents JSON from this file (- for stdin) instead of a payload argument")
	fs.Bool("marker-connected", true, "draw detection markers as merged shapes")
	fs.Float64("marker-radius", 0, "detection marker corner radius, 0..1")
	fs.Float64("marker-outer-radius", 0, "outer detection marker corner radius, 0..1")
	fs.Float64("marker-inner-radius", 0, "inner detection marker corner radius, 0..1")
	fs.Bool("pattern-connected", false, "merge neighbouring modules")
	fs.Float64("pattern-radius", 0, "module corner radius, 0..1")
}

// styleFromFlags builds a style from the flags the user actually set.
func styleFromFlags(fs *pflag.FlagSet) (style.Style, error) {
	var st style.Style
	if fs.Changed("level") {
		raw, _ := fs.GetString("level")
		level, err := matrix.ParseLevel(raw)
		if err != nil {
			return st, err
		}
		st.Level = level
	}

	var marker qrpath.DetectionMarkerOptions
	marker.Connected = changedBool(fs, "marker-connected")
	marker.CornerRadius = changedFloat(fs, "marker-radius")
	marker.OuterCornerRadius = changedFloat(fs, "marker-outer-radius")
	marker.InnerCornerRadius = changedFloat(fs, "marker-inner-radius")
	if marker != (qrpath.DetectionMarkerOptions{}) {
		st.DetectionMarker = &marker
	}

	var pattern qrpath.PatternOptions
	pattern.Connected = changedBool(fs, "pattern-connected")
	pattern.CornerRadius = changedFloat(fs, "pattern-radius")
	if pattern != (qrpath.PatternOptions{}) {
		st.Pattern = &pattern
	}

	if fs.Lookup("color") != nil {
		st.Color, _ = fs.GetString("color")
		st.BackgroundColor, _ = fs.GetString("background-color")
		st.QuietZone = changedFloat(fs, "quiet-zone")
		if fs.Changed("gradient") {
			stops, _ := fs.GetStringSlice("gradient")
			if len(stops) != 2 {
				return st, fmt.Errorf("--gradient takes exactly two colours, got %d", len(stops))
			}
			st.LinearGradient = &[2]string{stops[0], stops[1]}
		}
		if size := changedFloat(fs, "logo-size"); size != nil {
			st.Logo = &logo.Style{Size: size}
		}
	}
	return st, nil
}

func changedBool(fs *pflag.FlagSet, name string) *bool {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetBool(name)
	return &v
}

func changedFloat(fs *pflag.FlagSet, name string) *float64 {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetFloat64(name)
	return &v
}

// payload returns the value to encode: the single argument, or the
// encoded structured contents named by --contents.
func payload(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("contents")
	if path == "" {
		if len(args) != 1 {
			return "", fmt.Errorf("expected exactly one payload argument, got %d", len(args))
		}
		return args[0], nil
	}
	if len(args) != 0 {
		return "", fmt.Errorf("a payload argument cannot be combined with --contents")
	}

	data, err := readInput(cmd, path)
	if err != nil {
		return "", err
	}
	c, err := contents.FromJSON(data)
	if err != nil {
		return "", err
	}
	return c.Encode(), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// resolvedStyle merges a preset (if named) under the flag style and fills
// unset fields from the render config.
func resolvedStyle(cmd *cobra.Command, cfg *config.Config) (style.Style, error) {
	st, err := styleFromFlags(cmd.Flags())
	if err != nil {
		return st, err
	}

	if name, _ := cmd.Flags().GetString("preset"); name != "" {
		ctx := cmd.Context()
		database, err := openDB(ctx, cfg, commandLogger(cmd, cfg))
		if err != nil {
			return st, err
		}
		defer database.Close()

		p, err := database.GetPreset(ctx, name)
		if err != nil {
			return st, err
		}
		if p == nil {
			return st, fmt.Errorf("preset %q not found", name)
		}
		st = style.Merge(p.Style, st)
	}

	if st.Level == "" {
		st.Level = matrix.Level(cfg.Render.Level)
	}
	if st.Color == "" {
		st.Color = cfg.Render.Color
	}
	if st.BackgroundColor == "" {
		st.BackgroundColor = cfg.Render.BackgroundColor
	}
	if st.QuietZone == nil {
		qz := cfg.Render.QuietZone
		st.QuietZone = &qz
	}
	return st, st.Validate()
}

// composeFromFlags runs one composition for the path and svg commands.
func composeFromFlags(cmd *cobra.Command, args []string) (qrpath.Result, composer.Request, style.Style, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return qrpath.Result{}, composer.Request{}, style.Style{}, err
	}
	value, err := payload(cmd, args)
	if err != nil {
		return qrpath.Result{}, composer.Request{}, style.Style{}, err
	}
	st, err := resolvedStyle(cmd, cfg)
	if err != nil {
		return qrpath.Result{}, composer.Request{}, style.Style{}, err
	}

	size, _ := cmd.Flags().GetFloat64("size")
	if size == 0 {
		size = cfg.Render.Size
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return qrpath.Result{}, composer.Request{}, style.Style{}, fmt.Errorf("--size must be positive, got %v", size)
	}

	req := st.Request(value, size)
	c := composer.New(composer.Config{Logger: commandLogger(cmd, cfg)})
	res, err := c.Compose(cmd.Context(), req)
	if err != nil {
		return qrpath.Result{}, composer.Request{}, style.Style{}, fmt.Errorf("compose: %w", err)
	}
	return res, req, st, nil
}

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path [payload]",
		Short: "Print the SVG path of a QR code as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, _, err := composeFromFlags(cmd, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	addStyleFlags(cmd.Flags())
	return cmd
}

func newSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svg [payload]",
		Short: "Write a QR code SVG document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, req, st, err := composeFromFlags(cmd, args)
			if err != nil {
				return err
			}

			var logoData []byte
			var logoType string
			if path, _ := cmd.Flags().GetString("logo"); path != "" {
				if logoData, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("read logo: %w", err)
				}
				logoType = mediaTypeOf(path)
			}

			var buf bytes.Buffer
			if err := render.SVG(&buf, res, req.Size, st.Document(logoData, logoType)); err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	addStyleFlags(fs)
	fs.StringP("output", "o", "", "write the document to this file instead of stdout")
	fs.String("color", "", "module colour (default: render.color)")
	fs.String("background-color", "", "background colour (default: render.background_color)")
	fs.Float64("quiet-zone", 0, "margin around the symbol (default: render.quiet_zone)")
	fs.StringSlice("gradient", nil, "two colours for a linear gradient fill, e.g. --gradient red,blue")
	fs.String("logo", "", "image file placed in the centre")
	fs.Float64("logo-size", 0, "logo edge length (default: a fifth of the symbol)")
	return cmd
}

func mediaTypeOf(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/png"
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [contents.json|-]",
		Short: "Encode structured contents JSON into a QR payload string",
		Long: `Encode structured contents into the payload string scanner apps expect.

The input is a JSON object with a "type" of plain-text, url, email, phone,
sms, wifi or geolocation, for example:

  {"type":"wifi","ssid":"home","password":"secret","security":"WPA"}`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			c, err := contents.FromJSON(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Encode())
			return nil
		},
	}
}
