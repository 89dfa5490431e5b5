package domain

import "time"

// SouthIndianOcean is the operational basin envelope for the daily products:
// 20°E to 120°E, 45°S up to (never touching) the equator.
var SouthIndianOcean = BoundingBox{LonMin: 20.0, LonMax: 120.0, LatMin: -45.0, LatMax: 0.0}

// MinSystemNumber is the default identifier floor. Numbered invest areas
// below 70 are pre-genesis disturbances that the basin products exclude.
const MinSystemNumber = 70

// Observation is one bulletin row: a single ensemble member's position and
// intensity for one system at one forecast step.
type Observation struct {
	SystemID    string
	Member      *int // nil = the deterministic control run
	Timestep    time.Time
	Latitude    float64
	Longitude   float64
	PressureHPa float64
	WindSpeedMS float64
}

// Position is a geographic coordinate in (latitude, longitude) order, the
// bulletin's convention. Encoders that emit (longitude, latitude) order swap
// explicitly at the serialization boundary.
type Position struct {
	Lat float64
	Lon float64
}

// Trajectory is an ordered track with aligned per-step scalar series. All
// four slices share the same length; index i across them refers to the same
// forecast step.
type Trajectory struct {
	Positions   []Position
	Timesteps   []time.Time
	PressureHPa []float64
	WindSpeedMS []float64
}

// TimestepStrings renders the trajectory's timesteps as RFC 3339 text, the
// form timestamps take in serialized products.
func (t Trajectory) TimestepStrings() []string {
	out := make([]string, len(t.Timesteps))
	for i, ts := range t.Timesteps {
		out[i] = ts.UTC().Format(time.RFC3339)
	}
	return out
}

// MemberTrack pairs a trajectory with the ensemble member that produced it.
type MemberTrack struct {
	Member *int // nil = control run
	Trajectory
}

// EnsembleBundle is the full set of per-member tracks for one system.
type EnsembleBundle struct {
	SystemID string
	Tracks   []MemberTrack
}

// ConsensusBundle is a single representative track whose per-step intensity
// fields are percentile tuples (ordered as ConsensusPercentiles) rather than
// single values. Positions, Timesteps, and both percentile slices share
// length and index alignment.
type ConsensusBundle struct {
	SystemID               string
	Positions              []Position
	Timesteps              []time.Time
	PressurePercentilesHPa [][]float64
	WindPercentilesMS      [][]float64
}

// TimestepStrings renders the consensus timesteps as RFC 3339 text.
func (c ConsensusBundle) TimestepStrings() []string {
	out := make([]string, len(c.Timesteps))
	for i, ts := range c.Timesteps {
		out[i] = ts.UTC().Format(time.RFC3339)
	}
	return out
}

// BoundingBox is a geographic envelope in degrees.
type BoundingBox struct {
	LonMin float64
	LonMax float64
	LatMin float64
	LatMax float64
}

// Contains reports whether a coordinate lies inside the basin envelope.
// Latitude bounds are strict and longitude bounds inclusive, matching the
// product definition (the equator row itself is never admitted).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.LatMin < lat && lat < b.LatMax && b.LonMin <= lon && lon <= b.LonMax
}

// SystemGroup is one system's admitted observations. Number is the numeric
// value of SystemID, used for ordering and the identifier floor.
type SystemGroup struct {
	SystemID     string
	Number       int
	Observations []Observation
}

// SourceMarker identifies a cached bulletin on disk. EffectiveDate trails
// RunDate by one day when the run date's bulletin was not yet published and
// the previous day's was used instead.
type SourceMarker struct {
	RunDate       time.Time
	EffectiveDate time.Time
	Path          string
}

// ProductManifest announces one system's finished products for a run to
// downstream consumers.
type ProductManifest struct {
	RunDate       string    `json:"run_date"`       // YYYYMMDD
	EffectiveDate string    `json:"effective_date"` // YYYYMMDD of the bulletin actually used
	SystemID      string    `json:"system_id"`
	Products      []string  `json:"products"` // file names relative to the storm directory
	ProducedAt    time.Time `json:"produced_at"`
}

// Key returns the manifest's deterministic message key, run_date|system_id.
// Replaying a run produces identical keys, so compacted downstream topics
// keep one record per (run, system) instead of accumulating duplicates.
func (m ProductManifest) Key() string {
	return m.RunDate + "|" + m.SystemID
}
