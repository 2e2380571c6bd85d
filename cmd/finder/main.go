// Command finder replays a directory of per-timestep station amplitude
// files through the rupture detection engine. Each file holds one
// timestep in the playback format; files are processed in name order at a
// fixed timestep interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/eventdb"
	"github.com/banshee-data/rupture.report/internal/finder"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/gridding"
	"github.com/banshee-data/rupture.report/internal/monitor"
	"github.com/banshee-data/rupture.report/internal/rastermatch"
	"github.com/banshee-data/rupture.report/internal/version"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON configuration (optional)")
		tmplPath   = flag.String("templates", "", "path to JSON template tuning (optional)")
		dataDir    = flag.String("data-dir", "", "directory of per-timestep playback files")
		dbPath     = flag.String("db", "finder.db", "sqlite event database path")
		plotDir    = flag.String("plots", "", "write per-timestep image plots to this directory")
		reportPath = flag.String("report", "", "write an HTML run report to this path")
		intervalS  = flag.Float64("interval", 1.0, "seconds between timestep files")
		startStr   = flag.String("start", "", "RFC3339 time of the first timestep (default now)")
		showVer    = flag.Bool("version", false, "print build information and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}
	if *dataDir == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*configPath, *tmplPath, *dataDir, *dbPath, *plotDir, *reportPath, *intervalS, *startStr); err != nil {
		log.Fatalf("finder: %v", err)
	}
}

func run(configPath, tmplPath, dataDir, dbPath, plotDir, reportPath string, intervalS float64, startStr string) error {
	// Default acceleration thresholds in cm/s/s, ascending.
	cfg := &config.Config{Thresholds: []float64{2, 5, 10, 25, 50, 100, 200}}
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}
	params := cfg.Freeze()

	start := time.Now()
	if startStr != "" {
		var err error
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return fmt.Errorf("bad -start: %w", err)
		}
	}

	files, err := playbackFiles(dataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no playback files in %s", dataDir)
	}

	sets, err := templateSets(tmplPath)
	if err != nil {
		return err
	}

	engine, err := finder.NewEngine(params, sets, gridding.New(), func() finder.RasterEngine {
		return rastermatch.New()
	})
	if err != nil {
		return err
	}

	db, err := eventdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var plotter *monitor.ImagePlotter
	if plotDir != "" {
		plotter, err = monitor.NewImagePlotter(plotDir)
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	interval := time.Duration(intervalS * float64(time.Second))
	maskAge := time.Duration(params.MaskMaxAgeDays) * 24 * time.Hour
	var lastObs []finder.Observation

	for step, path := range files {
		now := start.Add(time.Duration(step) * interval)
		obs, err := readObservations(path, now)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		masked, err := db.MaskedStations(now, maskAge)
		if err != nil {
			return err
		}
		obs = dropMasked(obs, masked)
		lastObs = obs

		changed, err := engine.Step(ctx, obs, now)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		for _, o := range engine.RejectedStations() {
			if err := db.MaskStation(o.SNCL(), "amplitude ratio", now); err != nil {
				return err
			}
		}
		for _, sol := range changed {
			log.Printf("step %d event %s v%d mag %.2f len %.1fkm strike %.0f misfit %.3f",
				step, sol.EventID, sol.Version, sol.Mag, sol.LengthKm, sol.StrikeDeg, sol.Misfit)
			if err := db.SaveSolution(sol); err != nil {
				return err
			}
		}
		for _, ev := range engine.Events() {
			if err := db.SaveEvent(ev); err != nil {
				return err
			}
		}
	}

	end := start.Add(time.Duration(len(files)) * interval)
	if n, err := db.PurgeExpiredMasks(end, maskAge); err != nil {
		return err
	} else if n > 0 {
		log.Printf("purged %d expired station masks", n)
	}

	history := make(map[string][]finder.Solution)
	for _, ev := range engine.Events() {
		sols, err := db.Solutions(ev.ID)
		if err != nil {
			return err
		}
		history[ev.ID] = sols
		if plotter != nil {
			if err := plotter.PlotHistory(sols, ev.ID); err != nil {
				return err
			}
			if err := plotter.PlotMisfitCurves(ev.LastMatch, ev.ID); err != nil {
				return err
			}
		}
	}

	if reportPath != "" {
		if err := monitor.WriteReport(reportPath, lastObs, engine.Events(), history); err != nil {
			return err
		}
		log.Printf("wrote report to %s", reportPath)
	}
	return nil
}

// playbackFiles lists regular files in dir sorted by name. Timestep order
// is the lexical order of file names.
func playbackFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readObservations(path string, now time.Time) ([]finder.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return finder.ParseObservations(f, float64(now.UnixNano())/1e9)
}

// dropMasked removes observations from stations on the current mask list.
func dropMasked(obs []finder.Observation, masked map[string]bool) []finder.Observation {
	if len(masked) == 0 {
		return obs
	}
	out := obs[:0]
	for _, o := range obs {
		if masked[o.SNCL()] {
			continue
		}
		out = append(out, o)
	}
	return out
}

// templateSets generates the template sets described by the tuning file,
// or one generic all-defaults set when no file is given.
func templateSets(tmplPath string) ([]*finder.TemplateSet, error) {
	tunings := []config.TemplateTuning{{}}
	if tmplPath != "" {
		file, err := config.LoadTemplateTuning(tmplPath)
		if err != nil {
			return nil, err
		}
		tunings = file.Sets
	}

	sets := make([]*finder.TemplateSet, 0, len(tunings))
	for _, tt := range tunings {
		region := make([]geo.Coord, len(tt.Region))
		for i, p := range tt.Region {
			region[i] = geo.Coord{Lat: p[0], Lon: p[1]}
		}
		set, err := finder.GenerateTemplateSet(finder.GenSpec{
			Name:         tt.GetName(),
			ResolutionKm: tt.GetResolutionKm(),
			DipDeg:       tt.GetDipDeg(),
			StrikeStep:   tt.GetStrikeStepDeg(),
			Lengths:      tt.GetLengthsKm(),
			AspectRatio:  tt.GetAspectRatio(),
			DepthTopKm:   tt.GetDepthTopKm(),
			DepthMaxKm:   tt.GetDepthMaxKm(),
			MinMag:       tt.GetMinMag(),
			MaxMag:       tt.GetMaxMag(),
			Region:       region,
		})
		if err != nil {
			return nil, fmt.Errorf("template set %s: %w", tt.GetName(), err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
