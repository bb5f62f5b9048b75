package impedance

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SavePlot writes a two-panel PNG: normalized magnitude |Z|/Zc on a log
// scale above the phase in radians.
func (r *Result) SavePlot(path string) error {
	if r.Len() == 0 {
		return ErrNoFrequencies
	}

	mag := r.Abs()
	phase := r.Phase()
	magXY := make(plotter.XYs, r.Len())
	phaseXY := make(plotter.XYs, r.Len())
	for i := range magXY {
		magXY[i] = plotter.XY{X: r.Frequencies[i], Y: mag[i] / r.Zc}
		phaseXY[i] = plotter.XY{X: r.Frequencies[i], Y: phase[i]}
	}

	top := plot.New()
	top.Title.Text = "Input impedance"
	if r.Note != "" {
		top.Title.Text = fmt.Sprintf("Input impedance (%s)", r.Note)
	}
	top.X.Label.Text = "frequency (Hz)"
	top.Y.Label.Text = "|Z| / Zc"
	top.Y.Scale = plot.LogScale{}
	top.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	magLine, err := plotter.NewLine(magXY)
	if err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	top.Add(plotter.NewGrid(), magLine)

	bottom := plot.New()
	bottom.X.Label.Text = "frequency (Hz)"
	bottom.Y.Label.Text = "phase (rad)"
	phaseLine, err := plotter.NewLine(phaseXY)
	if err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	bottom.Add(plotter.NewGrid(), phaseLine)

	img := vgimg.New(18*vg.Centimeter, 14*vg.Centimeter)
	canvases := plot.Align(
		[][]*plot.Plot{{top}, {bottom}},
		draw.Tiles{Rows: 2, Cols: 1, PadY: 2 * vg.Millimeter},
		draw.New(img),
	)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("impedance: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	return nil
}
