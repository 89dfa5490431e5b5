package ecmwf

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cycloneoi/cyclogen/internal/domain"
)

// Column names of the essential-tracks CSV export.
const (
	colSystemID = "stormIdentifier"
	colMember   = "ensembleMemberNumber"
	colTime     = "validTime"
	colLat      = "latitude"
	colLon      = "longitude"
	colPressure = "pressureReducedToMeanSeaLevel"
	colWind     = "windSpeedAt10M"
)

var requiredColumns = []string{
	colSystemID, colMember, colTime, colLat, colLon, colPressure, colWind,
}

// DecodeBulletin parses an essential-tracks CSV stream into observations.
// Column order is taken from the header row. Rows with a missing or
// unparseable required field are dropped; the second return value counts
// them. A missing required column fails the whole bulletin.
func DecodeBulletin(r io.Reader) ([]domain.Observation, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading bulletin header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, 0, err
	}

	var (
		observations []domain.Observation
		dropped      int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.Reader only errors per-row for quoting problems once
			// FieldsPerRecord is disabled. Treat the row as malformed.
			dropped++
			continue
		}

		obs, err := parseRow(idx, row)
		if err != nil {
			dropped++
			continue
		}
		observations = append(observations, obs)
	}

	return observations, dropped, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("bulletin header missing column %q", name)
		}
	}
	return idx, nil
}

func parseRow(idx map[string]int, row []string) (domain.Observation, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	systemID := field(colSystemID)
	if systemID == "" {
		return domain.Observation{}, errors.New("empty storm identifier")
	}

	// An empty member number marks the deterministic control run.
	var member *int
	if s := field(colMember); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("member number %q: %w", s, err)
		}
		member = &m
	}

	ts, err := parseValidTime(field(colTime))
	if err != nil {
		return domain.Observation{}, err
	}

	lat, err := parseFloatField(field(colLat), colLat)
	if err != nil {
		return domain.Observation{}, err
	}
	lon, err := parseFloatField(field(colLon), colLon)
	if err != nil {
		return domain.Observation{}, err
	}
	pressurePa, err := parseFloatField(field(colPressure), colPressure)
	if err != nil {
		return domain.Observation{}, err
	}
	wind, err := parseFloatField(field(colWind), colWind)
	if err != nil {
		return domain.Observation{}, err
	}

	return domain.Observation{
		SystemID:    systemID,
		Member:      member,
		Timestep:    ts,
		Latitude:    lat,
		Longitude:   lon,
		PressureHPa: pressurePa / 100, // bulletin carries Pa
		WindSpeedMS: wind,
	}, nil
}

// parseValidTime accepts the two timestamp forms seen in the export:
// RFC 3339 and the compact YYYYMMDDHH.
func parseValidTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty valid time")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006010215", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("valid time %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func parseFloatField(s, name string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}
	return v, nil
}
