package main

import (
	"flag"
	"log"
	"os"
	"time"

	"weatherbench/internal/gen"
	"weatherbench/internal/readings"
)

type config struct {
	stations     int
	events       int
	anomalyShare float64
	start        string
	seed         int64
	dataOut      string
	truthOut     string
}

func parseConfig() config {
	var cfg config
	flag.IntVar(&cfg.stations, "stations", 20, "number of stations")
	flag.IntVar(&cfg.events, "events", 1440, "readings per station")
	flag.Float64Var(&cfg.anomalyShare, "anomaly-pct", 2.0, "share of injected anomalies per sensor column, percent")
	flag.StringVar(&cfg.start, "start", "", "first timestamp, RFC3339 (default 2025-07-01T00:00:00Z)")
	flag.Int64Var(&cfg.seed, "seed", 42, "rng seed")
	flag.StringVar(&cfg.dataOut, "out", "readings.csv", "readings output path")
	flag.StringVar(&cfg.truthOut, "truth-out", "ground_truth.csv", "ground truth output path")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseConfig()

	params := gen.Params{
		Stations:          cfg.stations,
		EventsPerStation:  cfg.events,
		AnomalyPercentage: cfg.anomalyShare / 100,
		Seed:              cfg.seed,
	}
	if cfg.start != "" {
		start, err := time.Parse(time.RFC3339, cfg.start)
		if err != nil {
			log.Fatalf("invalid start: %v", err)
		}
		params.Start = start.UTC()
	}

	rs, truth, err := gen.Generate(params)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	if err := writeReadings(cfg.dataOut, rs); err != nil {
		log.Fatalf("write readings: %v", err)
	}
	if err := writeTruth(cfg.truthOut, truth); err != nil {
		log.Fatalf("write truth: %v", err)
	}
	log.Printf("wrote %d readings to %s and %d injected anomalies to %s",
		len(rs), cfg.dataOut, len(truth), cfg.truthOut)
}

func writeReadings(path string, rs []readings.Reading) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := readings.WriteCSV(f, rs); err != nil {
		return err
	}
	return f.Close()
}

func writeTruth(path string, truth []readings.GroundTruth) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := readings.WriteTruthCSV(f, truth); err != nil {
		return err
	}
	return f.Close()
}
