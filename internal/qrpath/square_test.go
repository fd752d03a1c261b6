package qrpath

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/itsChris/qrcomposer/internal/matrix"
)

func TestCornersAt(t *testing.T) {
	tests := []struct {
		name string
		rows [][]int
		x, y int
		want Corners
	}{
		{
			name: "isolated module",
			rows: [][]int{{0, 0, 0}, {0, 1, 0}, {0, 0, 0}},
			x:    1, y: 1,
			want: AllCorners,
		},
		{
			name: "left of a horizontal pair",
			rows: [][]int{{1, 1}},
			x:    0, y: 0,
			want: Corners{TopLeft: true, TopRight: false, BottomLeft: true, BottomRight: false},
		},
		{
			name: "right of a horizontal pair",
			rows: [][]int{{1, 1}},
			x:    1, y: 0,
			want: Corners{TopLeft: false, TopRight: true, BottomLeft: false, BottomRight: true},
		},
		{
			name: "top of a vertical pair",
			rows: [][]int{{1}, {1}},
			x:    0, y: 0,
			want: Corners{TopLeft: true, TopRight: true, BottomLeft: false, BottomRight: false},
		},
		{
			name: "centre of a solid block",
			rows: [][]int{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}},
			x:    1, y: 1,
			want: Corners{},
		},
		{
			name: "corner of a solid block",
			rows: [][]int{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}},
			x:    2, y: 2,
			want: Corners{BottomRight: true},
		},
		{
			name: "diagonal neighbours do not count",
			rows: [][]int{{1, 0}, {0, 1}},
			x:    0, y: 0,
			want: AllCorners,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CornersAt(matrix.FromRows(tt.rows), tt.x, tt.y)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CornersAt(%d,%d) mismatch (-want +got):\n%s", tt.x, tt.y, diff)
			}
		})
	}
}

func TestWriteSquare_Sharp(t *testing.T) {
	var sb strings.Builder
	writeSquare(&sb, square{
		pos:      position{2, 1},
		size:     4,
		unitSize: 4,
		radius:   1,
	})
	want := "M 8,4 h 4 v 4 h -4 v -4 Z"
	if got := sb.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestWriteSquare_Rounded(t *testing.T) {
	var sb strings.Builder
	writeSquare(&sb, square{
		pos:      position{0, 0},
		size:     10,
		unitSize: 10,
		radius:   2,
		corners:  AllCorners,
	})
	want := "M 2,0 h 6 a2,2 0 0 1 2,2 v 6 a2,2 0 0 1 -2,2 h -6 a2,2 0 0 1 -2,-2 v -6 a2,2 0 0 1 2,-2 Z"
	if got := sb.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestWriteSquare_Padding(t *testing.T) {
	var sb strings.Builder
	writeSquare(&sb, square{
		pos:      position{1, 1},
		size:     3,
		unitSize: 1,
		padding:  2,
	})
	want := "M 3,3 h 3 v 3 h -3 v -3 Z"
	if got := sb.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{10, "10"},
		{2.5, "2.5"},
		{200.0 / 21, "9.523809523809524"},
		{1e-7, "0.0000001"},
	}
	for _, tt := range tests {
		if got := format(tt.in); got != tt.want {
			t.Errorf("format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
