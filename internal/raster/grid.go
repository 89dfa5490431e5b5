// Package raster models georeferenced probability grids, persists them as
// single-band GeoTIFF files, and renders them as styled images.
package raster

// Envelope is a geographic bounding extent in degrees.
type Envelope struct {
	West  float64
	East  float64
	South float64
	North float64
}

// Width returns the east-west span in degrees.
func (e Envelope) Width() float64 { return e.East - e.West }

// Height returns the north-south span in degrees.
func (e Envelope) Height() float64 { return e.North - e.South }

// Grid is a row-major single-band raster aligned to a geographic lattice.
// Row 0 is the northernmost row, the raster file convention. Cell (r,c) maps
// deterministically to a coordinate through the envelope and grid shape.
type Grid struct {
	Env  Envelope
	Rows int
	Cols int
	Data []float32 // len == Rows*Cols
}

// NewGrid allocates a zero-filled grid over the envelope.
func NewGrid(env Envelope, rows, cols int) *Grid {
	return &Grid{Env: env, Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// At returns the value at row r, column c.
func (g *Grid) At(r, c int) float32 { return g.Data[r*g.Cols+c] }

// Set stores a value at row r, column c.
func (g *Grid) Set(r, c int, v float32) { g.Data[r*g.Cols+c] = v }

// CellCenter returns the coordinate at the middle of cell (r,c).
func (g *Grid) CellCenter(r, c int) (lat, lon float64) {
	dx := g.Env.Width() / float64(g.Cols)
	dy := g.Env.Height() / float64(g.Rows)
	lon = g.Env.West + (float64(c)+0.5)*dx
	lat = g.Env.North - (float64(r)+0.5)*dy
	return lat, lon
}

// Max returns the largest cell value, or 0 for an empty grid.
func (g *Grid) Max() float32 {
	var max float32
	for _, v := range g.Data {
		if v > max {
			max = v
		}
	}
	return max
}
