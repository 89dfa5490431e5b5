package raster

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnv = Envelope{West: 20.0, East: 120.0, South: -45.0, North: 0.0}

func TestGeoTIFF_RoundTrip(t *testing.T) {
	g := NewGrid(testEnv, 90, 200)
	g.Set(0, 0, 0.25)
	g.Set(45, 100, 0.8)
	g.Set(89, 199, 1.0)
	g.Set(10, 10, -9999)

	path := filepath.Join(t.TempDir(), "strike_probability.tif")
	require.NoError(t, WriteGeoTIFF(path, g))

	got, err := ReadGeoTIFF(path)
	require.NoError(t, err)

	assert.Equal(t, g.Rows, got.Rows)
	assert.Equal(t, g.Cols, got.Cols)
	assert.InDelta(t, testEnv.West, got.Env.West, 1e-9)
	assert.InDelta(t, testEnv.East, got.Env.East, 1e-9)
	assert.InDelta(t, testEnv.South, got.Env.South, 1e-9)
	assert.InDelta(t, testEnv.North, got.Env.North, 1e-9)

	if diff := cmp.Diff(g.Data, got.Data); diff != "" {
		t.Fatalf("pixel data mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeGeoTIFF_Header(t *testing.T) {
	data, err := EncodeGeoTIFF(NewGrid(testEnv, 2, 3))
	require.NoError(t, err)

	// Little-endian byte-order mark and TIFF magic.
	assert.Equal(t, []byte{'I', 'I', 42, 0}, data[:4])
}

func TestEncodeGeoTIFF_RejectsBadShape(t *testing.T) {
	tests := []struct {
		name string
		grid *Grid
	}{
		{"zero rows", &Grid{Env: testEnv, Rows: 0, Cols: 3}},
		{"data length mismatch", &Grid{Env: testEnv, Rows: 2, Cols: 2, Data: make([]float32, 3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeGeoTIFF(tt.grid)
			assert.Error(t, err)
		})
	}
}

func TestDecodeGeoTIFF_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", []byte("II")},
		{"unknown byte order", []byte("XX\x2a\x00\x08\x00\x00\x00")},
		{"bad magic", []byte("II\x2b\x00\x08\x00\x00\x00")},
		{"IFD out of range", []byte("II\x2a\x00\xff\xff\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGeoTIFF(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestGrid_CellCenter(t *testing.T) {
	g := NewGrid(testEnv, 90, 200) // half-degree cells

	lat, lon := g.CellCenter(0, 0)
	assert.InDelta(t, -0.25, lat, 1e-9)
	assert.InDelta(t, 20.25, lon, 1e-9)

	lat, lon = g.CellCenter(89, 199)
	assert.InDelta(t, -44.75, lat, 1e-9)
	assert.InDelta(t, 119.75, lon, 1e-9)
}

func TestGrid_Max(t *testing.T) {
	g := NewGrid(testEnv, 2, 2)
	assert.Equal(t, float32(0), g.Max())

	g.Set(1, 1, 0.7)
	g.Set(0, 1, -3)
	assert.Equal(t, float32(0.7), g.Max())
}
