package report

import (
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/stats/distfit"
)

// QQPoints pairs the fitted quantile (X) with the empirical percentile (Y)
// on the scoring grid of points probabilities.
func QQPoints(values []float64, fit distfit.Fit, points int) plotter.XYs {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	grid := distfit.Grid(points)
	xys := make(plotter.XYs, len(grid))
	for i, p := range grid {
		xys[i].X = fit.Quantile(p)
		xys[i].Y = distfit.Percentile(sorted, p)
	}
	return xys
}

// PlotQQ saves a Q-Q plot of values against fit to path. The image format
// follows the file extension.
func PlotQQ(column string, values []float64, fit distfit.Fit, points int, path string) error {
	pts := QQPoints(values, fit, points)
	if len(pts) == 0 {
		return errors.ErrEmptyData
	}

	p := plot.New()
	p.Title.Text = column + " vs " + string(fit.Family)
	p.X.Label.Text = "Fitted quantile"
	p.Y.Label.Text = "Empirical quantile"

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.Color = color.RGBA{B: 255, A: 255, R: 50, G: 50}
	p.Add(s)

	lo, hi := math.Min(pts[0].X, pts[0].Y), math.Max(pts[len(pts)-1].X, pts[len(pts)-1].Y)
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	l.Color = color.RGBA{R: 255, A: 255}
	p.Add(l)

	return p.Save(4*vg.Inch, 4*vg.Inch, path)
}
