package domain

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ConsensusPercentiles are the quantile levels reported for pressure and wind
// at each consensus step, low to high.
var ConsensusPercentiles = []float64{0.10, 0.50, 0.90}

// consensusMinReports is the minimum number of member reports a timestep
// needs to appear in the consensus track. A percentile band over a single
// sample carries no spread information, so such steps are dropped.
const consensusMinReports = 2

// controlKey orders the unperturbed control run before member 1. Bulletin
// member numbers are never negative.
const controlKey = -1

// BuildEnsemble groups one system's observations by ensemble member and emits
// one trajectory per member, each ordered by timestep ascending (stable, so
// duplicate valid times keep bulletin order). Members with no points are
// omitted rather than emitted empty; no interpolation is performed across
// missing steps. The control run sorts first, then member numbers ascending.
func BuildEnsemble(observations []Observation) EnsembleBundle {
	if len(observations) == 0 {
		return EnsembleBundle{}
	}

	byMember := make(map[int][]Observation)
	for _, obs := range observations {
		k := memberKey(obs.Member)
		byMember[k] = append(byMember[k], obs)
	}

	keys := make([]int, 0, len(byMember))
	for k := range byMember {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	bundle := EnsembleBundle{SystemID: observations[0].SystemID}
	for _, k := range keys {
		group := byMember[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestep.Before(group[j].Timestep)
		})

		track := MemberTrack{Member: memberFromKey(k)}
		for _, obs := range group {
			track.Positions = append(track.Positions, Position{Lat: obs.Latitude, Lon: obs.Longitude})
			track.Timesteps = append(track.Timesteps, obs.Timestep)
			track.PressureHPa = append(track.PressureHPa, obs.PressureHPa)
			track.WindSpeedMS = append(track.WindSpeedMS, obs.WindSpeedMS)
		}
		bundle.Tracks = append(bundle.Tracks, track)
	}
	return bundle
}

// BuildConsensus reduces one system's ensemble to a single representative
// track. For each distinct timestep reported across the ensemble (ascending),
// the position is the median latitude and median longitude of the reporting
// members, and pressure and wind each get a percentile tuple at the
// ConsensusPercentiles levels. Timesteps with fewer than consensusMinReports
// reports are dropped.
func BuildConsensus(observations []Observation) ConsensusBundle {
	if len(observations) == 0 {
		return ConsensusBundle{}
	}

	type step struct {
		at        time.Time
		lats      []float64
		lons      []float64
		pressures []float64
		winds     []float64
	}
	steps := make(map[int64]*step)
	for _, obs := range observations {
		k := obs.Timestep.Unix()
		s := steps[k]
		if s == nil {
			s = &step{at: obs.Timestep}
			steps[k] = s
		}
		s.lats = append(s.lats, obs.Latitude)
		s.lons = append(s.lons, obs.Longitude)
		s.pressures = append(s.pressures, obs.PressureHPa)
		s.winds = append(s.winds, obs.WindSpeedMS)
	}

	keys := make([]int64, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	bundle := ConsensusBundle{SystemID: observations[0].SystemID}
	for _, k := range keys {
		s := steps[k]
		if len(s.lats) < consensusMinReports {
			continue
		}
		bundle.Positions = append(bundle.Positions, Position{
			Lat: quantile(0.5, s.lats),
			Lon: quantile(0.5, s.lons),
		})
		bundle.Timesteps = append(bundle.Timesteps, s.at)
		bundle.PressurePercentilesHPa = append(bundle.PressurePercentilesHPa, percentiles(s.pressures))
		bundle.WindPercentilesMS = append(bundle.WindPercentilesMS, percentiles(s.winds))
	}
	return bundle
}

// quantile returns the p-quantile of values without mutating the input.
func quantile(p float64, values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func percentiles(values []float64) []float64 {
	out := make([]float64, len(ConsensusPercentiles))
	for i, p := range ConsensusPercentiles {
		out[i] = quantile(p, values)
	}
	return out
}

func memberKey(m *int) int {
	if m == nil {
		return controlKey
	}
	return *m
}

func memberFromKey(k int) *int {
	if k == controlKey {
		return nil
	}
	m := k
	return &m
}
