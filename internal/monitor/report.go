package monitor

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rupture.report/internal/finder"
)

// WriteReport renders an interactive HTML summary of a run: the station
// map with the final rupture trace and the per-event solution evolution.
func WriteReport(path string, obs []finder.Observation, events []*finder.Event, history map[string][]finder.Solution) error {
	page := components.NewPage()
	page.SetPageTitle("rupture detection report")

	page.AddCharts(stationMap(obs, events))
	for _, ev := range events {
		sols := history[ev.ID]
		if len(sols) == 0 {
			continue
		}
		page.AddCharts(solutionChart(ev.ID, sols))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return page.Render(f)
}

// stationMap scatters stations in lon/lat with triggered stations called
// out, and overlays each event's final fault trace.
func stationMap(obs []finder.Observation, events []*finder.Event) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "stations and rupture traces"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "longitude", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latitude", Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var triggered, quiet []opts.ScatterData
	for _, o := range obs {
		d := opts.ScatterData{Value: []interface{}{o.Coord.Lon, o.Coord.Lat}, Name: o.SNCL()}
		if o.Triggered {
			triggered = append(triggered, d)
		} else {
			quiet = append(quiet, d)
		}
	}
	sc.AddSeries("triggered", triggered)
	sc.AddSeries("quiet", quiet)

	for _, ev := range events {
		sol := ev.Solution
		if sol.LengthKm <= 0 {
			continue
		}
		end1, end2 := finder.FaultEndpoints(sol.Centroid, sol.StrikeDeg, sol.LengthKm)
		sc.AddSeries("fault "+ev.ID, []opts.ScatterData{
			{Value: []interface{}{end1.Lon, end1.Lat}},
			{Value: []interface{}{sol.Centroid.Lon, sol.Centroid.Lat}},
			{Value: []interface{}{end2.Lon, end2.Lat}},
		})
	}
	return sc
}

// solutionChart plots magnitude and length against solution version for
// one event.
func solutionChart(eventID string, sols []finder.Solution) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "event " + eventID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "version"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var versions []string
	var mags, lengths []opts.LineData
	for _, s := range sols {
		versions = append(versions, fmt.Sprintf("%d", s.Version))
		mags = append(mags, opts.LineData{Value: s.Mag})
		lengths = append(lengths, opts.LineData{Value: s.LengthKm})
	}
	line.SetXAxis(versions).
		AddSeries("magnitude", mags).
		AddSeries("length km", lengths)
	return line
}
