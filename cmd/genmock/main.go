// Command genmock writes a synthetic ECMWF essential-tracks bulletin for
// tests and demos. Tracks come from a seeded random walk, so the same flags
// always produce the same bulletin. The result is decoded back with the real
// bulletin parser and summarized the way a run would select it.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/tracks/ecmwf_tracks_20260301.csv.zst \
//	  -date 20260301 \
//	  -systems 92S,94S,65S,90N \
//	  -members 10 -steps 20
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cycloneoi/cyclogen/internal/adapter/ecmwf"
	"github.com/cycloneoi/cyclogen/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path; a .zst suffix compresses the bulletin")
	date := flag.String("date", domain.Today().Format("20060102"), "run date, YYYYMMDD")
	systems := flag.String("systems", "92S,94S,65S,90N", "comma-separated system identifiers")
	members := flag.Int("members", 10, "perturbed members per system (plus one control run)")
	steps := flag.Int("steps", 20, "forecast steps per track, 6h apart")
	malformed := flag.Int("malformed", 0, "malformed rows to inject")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}

	runDate, err := time.Parse("20060102", *date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	r := rand.New(rand.NewSource(*seed))

	rows := [][]string{{
		"stormIdentifier", "ensembleMemberNumber", "validTime",
		"latitude", "longitude", "pressureReducedToMeanSeaLevel", "windSpeedAt10M",
	}}
	for _, id := range strings.Split(*systems, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		rows = append(rows, systemRows(r, id, runDate, *members, *steps)...)
	}
	for i := 0; i < *malformed; i++ {
		rows = append(rows, []string{"99S", "1", runDate.Format(time.RFC3339), "not-a-latitude", "55.0", "100000", "15.0"})
	}

	if err := writeBulletin(*out, rows); err != nil {
		return fmt.Errorf("writing bulletin: %w", err)
	}
	log.Printf("wrote %d rows: %s", len(rows)-1, *out)

	return printStats(*out)
}

// systemRows walks one system's control run and members forward from a random
// genesis point. Identifiers with an N suffix spawn north of the equator so
// the basin filter has something to reject.
func systemRows(r *rand.Rand, id string, runDate time.Time, members, steps int) [][]string {
	genLat := -(8 + r.Float64()*17)
	if strings.HasSuffix(id, "N") {
		genLat = -genLat
	}
	genLon := 45 + r.Float64()*50

	// Shared per-step drift; members add growing perturbations on top.
	driftLat := -0.25 - r.Float64()*0.2
	driftLon := -0.5 + r.Float64()*1.0

	var rows [][]string
	for m := 0; m <= members; m++ {
		memberCol := ""
		if m > 0 {
			memberCol = strconv.Itoa(m)
		}

		lat, lon := genLat, genLon
		pressure := 100200.0 // Pa
		for s := 0; s < steps; s++ {
			spread := 0.12 * float64(s)
			if m > 0 {
				lat += r.NormFloat64() * spread
				lon += r.NormFloat64() * spread
			}

			wind := 18 + (100200-pressure)/100*0.8
			rows = append(rows, []string{
				id,
				memberCol,
				runDate.Add(time.Duration(s) * 6 * time.Hour).Format(time.RFC3339),
				fmt.Sprintf("%.2f", lat),
				fmt.Sprintf("%.2f", lon),
				fmt.Sprintf("%.0f", pressure),
				fmt.Sprintf("%.1f", wind),
			})

			lat += driftLat + r.NormFloat64()*0.05
			lon += driftLon + r.NormFloat64()*0.05
			pressure -= 120 + r.NormFloat64()*40
			if pressure < 95500 {
				pressure = 95500
			}
		}
	}
	return rows
}

func writeBulletin(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return err
		}
		w = zw
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// printStats re-reads the bulletin through the production decoder and shows
// what the basin filter would keep.
func printStats(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		in = zr
	}

	observations, dropped, err := ecmwf.DecodeBulletin(in)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Bulletin stats ===")
	fmt.Printf("Rows decoded: %d (malformed dropped: %d)\n", len(observations), dropped)

	groups := domain.SelectBasin(observations, domain.SouthIndianOcean, domain.MinSystemNumber)
	fmt.Printf("Basin systems selected: %d\n", len(groups))
	for _, g := range groups {
		members := make(map[string]struct{})
		for _, o := range g.Observations {
			k := "control"
			if o.Member != nil {
				k = strconv.Itoa(*o.Member)
			}
			members[k] = struct{}{}
		}
		fmt.Printf("  %s: %d observations, %d members\n", g.SystemID, len(g.Observations), len(members))
	}
	return nil
}
