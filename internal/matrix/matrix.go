// Package matrix produces QR module matrices from payload strings.
//
// Encoding and error correction are delegated to github.com/skip2/go-qrcode.
// The matrix returned here never includes the quiet zone border; margins
// belong to whoever renders the symbol.
package matrix

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyPayload is returned when there is nothing to encode.
var ErrEmptyPayload = errors.New("payload cannot be empty")

// Level is a QR error-correction level.
type Level string

// Error-correction levels, weakest to strongest.
const (
	L Level = "L"
	M Level = "M"
	Q Level = "Q"
	H Level = "H"
)

// DefaultLevel is used when no level is given.
const DefaultLevel = M

// ParseLevel parses an error-correction level name. An empty string
// yields DefaultLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultLevel, nil
	case "L":
		return L, nil
	case "M":
		return M, nil
	case "Q":
		return Q, nil
	case "H":
		return H, nil
	default:
		return "", fmt.Errorf("matrix: invalid error correction level %q (want L, M, Q or H)", s)
	}
}

// recovery maps a Level onto the encoder's recovery levels.
func (l Level) recovery() (qrcode.RecoveryLevel, error) {
	switch l {
	case L:
		return qrcode.Low, nil
	case "", M:
		return qrcode.Medium, nil
	case Q:
		return qrcode.High, nil
	case H:
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("matrix: invalid error correction level %q", string(l))
	}
}

// Matrix is a square grid of QR modules indexed [row][col] with the origin
// at the top-left. A true value is a dark ("on") module.
type Matrix [][]bool

// Size returns the side length of the matrix.
func (m Matrix) Size() int {
	return len(m)
}

// Get reports whether the module at column x, row y is on. Positions
// outside the matrix are off.
func (m Matrix) Get(x, y int) bool {
	if y < 0 || y >= len(m) || x < 0 || x >= len(m[y]) {
		return false
	}
	return m[y][x]
}

// FromRows builds a matrix from rows of 0/1 values. Any non-zero value is
// treated as on.
func FromRows(rows [][]int) Matrix {
	m := make(Matrix, len(rows))
	for y, row := range rows {
		m[y] = make([]bool, len(row))
		for x, v := range row {
			m[y][x] = v != 0
		}
	}
	return m
}

// Encode encodes payload at the given error-correction level and returns
// its module matrix.
func Encode(payload string, level Level) (Matrix, error) {
	if payload == "" {
		return nil, fmt.Errorf("matrix: encode: %w", ErrEmptyPayload)
	}

	recovery, err := level.recovery()
	if err != nil {
		return nil, err
	}

	q, err := qrcode.New(payload, recovery)
	if err != nil {
		return nil, fmt.Errorf("matrix: encode: %w", err)
	}
	q.DisableBorder = true

	bitmap := q.Bitmap()
	m := make(Matrix, len(bitmap))
	for y, row := range bitmap {
		m[y] = append([]bool(nil), row...)
	}
	return m, nil
}
