package finder

import (
	"testing"
	"time"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

func testTime() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

// testParams freezes a small config suitable for unit tests. mutate may be
// nil.
func testParams(t *testing.T, mutate func(*config.Config)) config.Params {
	t.Helper()
	cfg := &config.Config{Thresholds: []float64{2, 10, 50}}
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg.Freeze()
}

// station builds a triggered, included observation.
func station(net, sta string, lat, lon, pga, ts float64) Observation {
	return Observation{
		Network: net, Station: sta, Location: "--", Channel: "HNZ",
		Coord:     geo.Coord{Lat: lat, Lon: lon},
		PGA:       pga,
		Timestamp: ts,
		Include:   true,
		Triggered: true,
	}
}

// floodInterp rasterizes to a constant surface at the maximum sample
// value, which makes per-threshold pixel counts fully predictable.
type floodInterp struct{}

func (floodInterp) Interpolate(points []ScatterPoint, spec GridSpec) (grid.Grid, error) {
	g := grid.New(spec.NLat, spec.NLon)
	max := spec.Border
	for _, p := range points {
		if p.Value > max {
			max = p.Value
		}
	}
	g.Fill(max)
	return g, nil
}

// scriptEngine drives the matcher with scripted misfits. Rotate encodes
// the strike angle and mask height into a marker grid; Correlate decodes
// them and asks the script for the misfit. A nil result from the script
// marks a degenerate cell.
type scriptEngine struct {
	// misfit returns (misfit, row, col, ok) for a strike angle and mask
	// row count. ok=false means degenerate.
	misfit func(strikeDeg float64, maskRows int) (float64, int, int, bool)
	calls  int
}

func (s *scriptEngine) Rotate(src grid.Grid, angleDeg float64) grid.Grid {
	g := grid.New(src.Rows(), 1)
	g.Set(0, 0, angleDeg)
	return g
}

func (s *scriptEngine) Correlate(templ, image grid.Grid) (MatchResult, error) {
	s.calls++
	m, row, col, ok := s.misfit(templ.At(0, 0), templ.Rows())
	if !ok {
		return MatchResult{}, ErrDegenerateCell
	}
	return MatchResult{Row: row, Col: col, Misfit: m}, nil
}

// testSet builds a template set whose mask row count encodes the length
// index (k+1 rows), so scriptEngine can tell lengths apart.
func testSet(t *testing.T, name string, strikes, lengths []float64) *TemplateSet {
	t.Helper()
	masks := make([]grid.Grid, len(lengths))
	infos := make([]TemplateInfo, len(lengths))
	for k, L := range lengths {
		m := grid.New(k+1, 1)
		m.Fill(1)
		masks[k] = m
		infos[k] = TemplateInfo{LengthKm: L, WidthKm: L / 3, Mag: 5 + float64(k)}
	}
	set, err := NewTemplateSet(name, 5, 90, strikes, lengths, masks, infos, 0, 10, nil)
	if err != nil {
		t.Fatalf("testSet: %v", err)
	}
	return set
}

// testImage builds an image whose every layer passes the pixel-count gate.
func testImage(t *testing.T, params config.Params, nLayers int) *EventImage {
	t.Helper()
	layers := make([]grid.Grid, nLayers)
	for i := range layers {
		g := grid.New(10, 10)
		g.Fill(1)
		layers[i] = g
	}
	return &EventImage{
		Params: ImageParams{
			MinLat: 34, MaxLat: 35, MinLon: -118, MaxLon: -117,
			NLat: 10, NLon: 10,
			DLat: 1.0 / 9, DLon: 1.0 / 9,
		},
		Layers: grid.NewStack(layers),
	}
}
