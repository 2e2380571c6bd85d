// Package monitor renders diagnostic views of a detection run: per-layer
// event image heatmaps as PNGs and an HTML report of solution history.
// Nothing here is on the real-time path; plots are written after the fact
// from data the engine already produced.
package monitor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rupture.report/internal/finder"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// gridXYZ adapts a binary image layer to gonum's heatmap interface with
// geographic axes.
type gridXYZ struct {
	g      grid.Grid
	params finder.ImageParams
}

func (d gridXYZ) Dims() (c, r int) { return d.g.Cols(), d.g.Rows() }

func (d gridXYZ) X(c int) float64 { return d.params.MinLon + float64(c)*d.params.DLon }

// Y runs south to north; heatmap row 0 is the bottom of the plot, so the
// image's northern row 0 maps to the top.
func (d gridXYZ) Y(r int) float64 {
	return d.params.MaxLat - float64(d.g.Rows()-1-r)*d.params.DLat
}

func (d gridXYZ) Z(c, r int) float64 { return d.g.At(d.g.Rows()-1-r, c) }

// ImagePlotter writes per-threshold heatmaps of event images to a
// directory, one PNG per layer per call.
type ImagePlotter struct {
	outputDir string
	frameIdx  int
}

// NewImagePlotter creates the output directory if needed.
func NewImagePlotter(outputDir string) (*ImagePlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	return &ImagePlotter{outputDir: outputDir}, nil
}

// Plot writes one PNG per threshold layer of the image, named
// frame_<n>_layer_<i>.png. The frame counter advances on every call.
func (p *ImagePlotter) Plot(img *finder.EventImage, eventID string) error {
	for i := 0; i < img.Layers.Len(); i++ {
		pl := plot.New()
		pl.Title.Text = fmt.Sprintf("event %s layer %d", eventID, i)
		pl.X.Label.Text = "longitude"
		pl.Y.Label.Text = "latitude"

		hm := plotter.NewHeatMap(gridXYZ{g: img.Layers.Layer(i), params: img.Params},
			moreland.SmoothBlueRed().Palette(16))
		pl.Add(hm)

		name := filepath.Join(p.outputDir,
			fmt.Sprintf("frame_%04d_layer_%d.png", p.frameIdx, i))
		if err := pl.Save(6*vg.Inch, 6*vg.Inch, name); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	p.frameIdx++
	return nil
}

// PlotHistory writes a two-panel PNG of magnitude and rupture length over
// solution versions for one event.
func (p *ImagePlotter) PlotHistory(sols []finder.Solution, eventID string) error {
	if len(sols) == 0 {
		return nil
	}
	magXY := make(plotter.XYs, len(sols))
	lenXY := make(plotter.XYs, len(sols))
	for i, s := range sols {
		magXY[i] = plotter.XY{X: float64(s.Version), Y: s.Mag}
		lenXY[i] = plotter.XY{X: float64(s.Version), Y: s.LengthKm}
	}

	for _, panel := range []struct {
		label string
		xy    plotter.XYs
	}{
		{"magnitude", magXY},
		{"length_km", lenXY},
	} {
		pl := plot.New()
		pl.Title.Text = fmt.Sprintf("event %s %s", eventID, panel.label)
		pl.X.Label.Text = "solution version"
		pl.Y.Label.Text = panel.label

		line, err := plotter.NewLine(panel.xy)
		if err != nil {
			return err
		}
		pl.Add(line)

		name := filepath.Join(p.outputDir,
			fmt.Sprintf("event_%s_%s.png", eventID, panel.label))
		if err := pl.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// PlotMisfitCurves writes the per-axis misfit minima of an event's most
// recent match: misfit versus strike azimuth and misfit versus rupture
// length. A nil match writes nothing.
func (p *ImagePlotter) PlotMisfitCurves(m *finder.Match, eventID string) error {
	if m == nil {
		return nil
	}
	for _, panel := range []struct {
		label  string
		xlabel string
		curve  []finder.ValueMisfit
	}{
		{"misfit_strike", "strike (deg)", m.AzimuthMisfits},
		{"misfit_length", "length (km)", m.LengthMisfits},
	} {
		xy := make(plotter.XYs, 0, len(panel.curve))
		for _, v := range panel.curve {
			if math.IsInf(v.Misfit, 1) {
				continue
			}
			xy = append(xy, plotter.XY{X: v.Value, Y: v.Misfit})
		}
		if len(xy) == 0 {
			continue
		}

		pl := plot.New()
		pl.Title.Text = fmt.Sprintf("event %s %s", eventID, panel.label)
		pl.X.Label.Text = panel.xlabel
		pl.Y.Label.Text = "misfit"

		line, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		pl.Add(line)

		name := filepath.Join(p.outputDir,
			fmt.Sprintf("event_%s_%s.png", eventID, panel.label))
		if err := pl.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}
