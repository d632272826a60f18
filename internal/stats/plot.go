package stats

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/efinauri/shadowbuilder/internal/model"
)

// WriteFitnessPlot draws best, mean and min fitness per generation. The image
// format follows the path extension.
func WriteFitnessPlot(path, title string, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"
	p.Y.Min = 0
	p.Y.Max = 1

	best := make(plotter.XYs, len(diagnostics))
	mean := make(plotter.XYs, len(diagnostics))
	low := make(plotter.XYs, len(diagnostics))
	for i, d := range diagnostics {
		x := float64(d.Generation)
		best[i] = plotter.XY{X: x, Y: d.BestFitness}
		mean[i] = plotter.XY{X: x, Y: d.MeanFitness}
		low[i] = plotter.XY{X: x, Y: d.MinFitness}
	}

	series := []struct {
		name   string
		points plotter.XYs
		color  color.Color
	}{
		{"best", best, color.RGBA{R: 0x1b, G: 0x9e, B: 0x77, A: 0xff}},
		{"mean", mean, color.RGBA{R: 0x75, G: 0x70, B: 0xb3, A: 0xff}},
		{"min", low, color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.points)
		if err != nil {
			return err
		}
		line.Color = s.color
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
