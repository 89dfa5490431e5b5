// Package geojson encodes forecast trajectories as GeoJSON FeatureCollections
// of LineStrings and decodes them back for contract checks.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/cycloneoi/cyclogen/internal/domain"
)

// Geometry is a GeoJSON LineString. Coordinates are [longitude, latitude]
// pairs; the axis swap from the domain's (lat, lon) convention happens here
// and only here.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// Feature is one track plus its serialized properties.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the document form of a set of tracks.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Encode converts trajectories into a FeatureCollection. Every feature gets a
// "member" property equal to its position in the input list; properties[i],
// when present, is merged over that default with last-write-wins semantics,
// so a caller-supplied "member" key overrides the index. A properties list
// shorter than the trajectory list is padded with empty maps; the trajectory
// list is never truncated to match.
func Encode(trajectories []domain.Trajectory, properties []map[string]any) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(trajectories)),
	}
	for i, traj := range trajectories {
		coords := make([][]float64, len(traj.Positions))
		for j, pos := range traj.Positions {
			coords[j] = []float64{pos.Lon, pos.Lat}
		}

		props := map[string]any{"member": i}
		if i < len(properties) {
			for k, v := range properties[i] {
				props[k] = v
			}
		}

		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: "LineString", Coordinates: coords},
			Properties: props,
		})
	}
	return fc
}

// EncodeEnsemble builds the ensemble_tracks document: one feature per member
// with aligned timesteps (RFC 3339 text), pressures, and wind speeds.
func EncodeEnsemble(bundle domain.EnsembleBundle) FeatureCollection {
	trajectories := make([]domain.Trajectory, len(bundle.Tracks))
	properties := make([]map[string]any, len(bundle.Tracks))
	for i, track := range bundle.Tracks {
		trajectories[i] = track.Trajectory
		properties[i] = map[string]any{
			"timesteps":    track.TimestepStrings(),
			"pressure_hpa": track.PressureHPa,
			"wind_ms":      track.WindSpeedMS,
		}
	}
	return Encode(trajectories, properties)
}

// EncodeConsensus builds the mean_track document: exactly one feature whose
// intensity properties are per-step percentile tuples.
func EncodeConsensus(bundle domain.ConsensusBundle) FeatureCollection {
	trajectory := domain.Trajectory{Positions: bundle.Positions, Timesteps: bundle.Timesteps}
	properties := []map[string]any{{
		"timesteps":                bundle.TimestepStrings(),
		"pressure_percentiles_hpa": bundle.PressurePercentilesHPa,
		"wind_percentiles_ms":      bundle.WindPercentilesMS,
	}}
	return Encode([]domain.Trajectory{trajectory}, properties)
}

// Marshal renders a collection as indented JSON.
func Marshal(fc FeatureCollection) ([]byte, error) {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// Decode parses a FeatureCollection document.
func Decode(data []byte) (FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return FeatureCollection{}, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}
