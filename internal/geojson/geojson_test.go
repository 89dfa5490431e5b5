package geojson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycloneoi/cyclogen/internal/domain"
)

func lineTrajectory(points ...domain.Position) domain.Trajectory {
	return domain.Trajectory{Positions: points}
}

func TestEncode_AxisSwap(t *testing.T) {
	traj := lineTrajectory(domain.Position{Lat: 10.0, Lon: 20.0})

	fc := Encode([]domain.Trajectory{traj}, nil)

	require.Len(t, fc.Features, 1)
	coords := fc.Features[0].Geometry.Coordinates
	require.Len(t, coords, 1)
	assert.Equal(t, []float64{20.0, 10.0}, coords[0])
}

func TestEncode_RoundTrip(t *testing.T) {
	trajectories := []domain.Trajectory{
		lineTrajectory(domain.Position{Lat: -15.0, Lon: 60.0}, domain.Position{Lat: -16.0, Lon: 61.0}),
		lineTrajectory(domain.Position{Lat: -14.0, Lon: 59.0}),
		lineTrajectory(domain.Position{Lat: -13.0, Lon: 58.0}),
	}

	data, err := Marshal(Encode(trajectories, nil))
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, len(trajectories))
	for i, feature := range decoded.Features {
		assert.Equal(t, "Feature", feature.Type)
		assert.Equal(t, "LineString", feature.Geometry.Type)
		assert.EqualValues(t, i, feature.Properties["member"], "member must equal input index")
	}
}

func TestEncode_PropertyPadding(t *testing.T) {
	trajectories := []domain.Trajectory{
		lineTrajectory(domain.Position{Lat: -15.0, Lon: 60.0}),
		lineTrajectory(domain.Position{Lat: -14.0, Lon: 59.0}),
	}
	properties := []map[string]any{{"name": "FREDDY"}}

	fc := Encode(trajectories, properties)

	require.Len(t, fc.Features, 2, "short property list must never truncate trajectories")
	assert.Equal(t, "FREDDY", fc.Features[0].Properties["name"])
	assert.Equal(t, map[string]any{"member": 1}, fc.Features[1].Properties)
}

func TestEncode_MemberOverrideLastWriteWins(t *testing.T) {
	trajectories := []domain.Trajectory{lineTrajectory(domain.Position{Lat: -15.0, Lon: 60.0})}
	properties := []map[string]any{{"member": 42}}

	fc := Encode(trajectories, properties)

	assert.Equal(t, 42, fc.Features[0].Properties["member"])
}

func TestEncodeEnsemble_FeaturePerMemberWithAlignedProperties(t *testing.T) {
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	bundle := domain.BuildEnsemble([]domain.Observation{
		{SystemID: "75", Member: intPtr(1), Timestep: at, Latitude: -15.0, Longitude: 60.0, PressureHPa: 1000.0, WindSpeedMS: 18.0},
		{SystemID: "75", Member: intPtr(1), Timestep: at.Add(6 * time.Hour), Latitude: -15.5, Longitude: 61.0, PressureHPa: 995.0, WindSpeedMS: 21.0},
		{SystemID: "75", Member: intPtr(2), Timestep: at, Latitude: -14.0, Longitude: 59.0, PressureHPa: 1002.0, WindSpeedMS: 16.0},
	})

	fc := EncodeEnsemble(bundle)

	require.Len(t, fc.Features, 2)
	first := fc.Features[0]
	assert.Equal(t, 0, first.Properties["member"])
	assert.Equal(t, []string{"2026-03-01T00:00:00Z", "2026-03-01T06:00:00Z"}, first.Properties["timesteps"])
	assert.Equal(t, []float64{1000.0, 995.0}, first.Properties["pressure_hpa"])
	assert.Equal(t, []float64{18.0, 21.0}, first.Properties["wind_ms"])
	assert.Len(t, first.Geometry.Coordinates, 2)
}

func TestEncodeConsensus_SingleFeature(t *testing.T) {
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	bundle := domain.ConsensusBundle{
		SystemID:               "75",
		Positions:              []domain.Position{{Lat: -12.0, Lon: 60.0}},
		Timesteps:              []time.Time{at},
		PressurePercentilesHPa: [][]float64{{990.0, 1000.0, 1010.0}},
		WindPercentilesMS:      [][]float64{{15.0, 20.0, 25.0}},
	}

	data, err := Marshal(EncodeConsensus(bundle))
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, decoded.Features, 1)
	feature := decoded.Features[0]
	assert.EqualValues(t, 0, feature.Properties["member"])
	assert.Equal(t, []float64{60.0, -12.0}, feature.Geometry.Coordinates[0])

	// Timestamps serialize as text, intensities as plain JSON numbers.
	assert.Contains(t, string(data), `"2026-03-01T00:00:00Z"`)
	percentiles, ok := feature.Properties["pressure_percentiles_hpa"].([]any)
	require.True(t, ok)
	require.Len(t, percentiles, 1)
	assert.Equal(t, []any{990.0, 1000.0, 1010.0}, percentiles[0])
}

func intPtr(n int) *int {
	return &n
}
