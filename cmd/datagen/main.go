package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"epifit/internal/datagen"
)

func main() {
	out := flag.String("out", "endemic_biweekly.csv", "output file path")
	steps := flag.Int("steps", 520, "number of observation steps")
	kind := flag.String("kind", datagen.KindEndemic, "series shape: endemic or outbreak")
	format := flag.String("format", "", "output format: xlsx or csv (default inferred from -out)")
	seed := flag.Int64("seed", 42, "RNG seed (deterministic)")
	start := flag.String("start", "1948-01-03", "start date (YYYY-MM-DD)")
	flag.Parse()

	if *steps < 2 {
		fmt.Fprintln(os.Stderr, "steps must be >= 2")
		os.Exit(2)
	}

	startDate, err := time.ParseInLocation("2006-01-02", *start, time.UTC)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -start (expected YYYY-MM-DD):", err)
		os.Exit(2)
	}

	fmtName := strings.ToLower(strings.TrimSpace(*format))
	if fmtName == "" {
		ext := strings.ToLower(filepath.Ext(*out))
		switch ext {
		case ".xlsx":
			fmtName = "xlsx"
		default:
			fmtName = "csv"
		}
	}

	cfg := datagen.DefaultConfig()
	cfg.Steps = *steps
	cfg.Seed = *seed
	cfg.StartDate = startDate
	cfg.Kind = *kind

	ds, err := datagen.Generate(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error generating dataset:", err)
		os.Exit(1)
	}

	switch fmtName {
	case "csv":
		if err := datagen.WriteCSV(*out, ds); err != nil {
			fmt.Fprintln(os.Stderr, "error writing csv:", err)
			os.Exit(1)
		}
	case "xlsx":
		if err := datagen.WriteXLSX(*out, ds); err != nil {
			fmt.Fprintln(os.Stderr, "error writing xlsx:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "unsupported format:", fmtName)
		os.Exit(2)
	}

	fmt.Printf("Wrote %s series: %s\n", cfg.Kind, *out)
	fmt.Printf("Columns: %d | Rows: %d\n", len(ds.Headers), len(ds.Rows))
}
