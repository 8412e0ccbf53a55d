package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/signalsfoundry/sensitivity-calculator/internal/ensemble"
)

// ErrNothingToPlot is returned when no camera table has channels.
var ErrNothingToPlot = errors.New("no channels to plot")

type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// NETPlot draws array NET against band center, one series per camera.
func NETPlot(tables []ensemble.Table) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Array NET"
	p.X.Label.Text = "Frequency [GHz]"
	p.Y.Label.Text = "NET [uK-rts]"
	p.Add(plotter.NewGrid())

	series := 0
	for _, t := range tables {
		if t.Level != ensemble.LevelCamera || len(t.Channels) == 0 {
			continue
		}
		pts := errPoints{
			XYs:     make(plotter.XYs, len(t.Channels)),
			YErrors: make(plotter.YErrors, len(t.Channels)),
		}
		for i, r := range t.Channels {
			pts.XYs[i].X = r.Freq.Mean * toGHz
			pts.XYs[i].Y = r.NETArray.Mean * toUK
			pts.YErrors[i].Low = r.NETArray.Spread * toUK
			pts.YErrors[i].High = r.NETArray.Spread * toUK
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		sc.GlyphStyle.Color = plotutil.Color(series)
		sc.GlyphStyle.Shape = plotutil.Shape(series)
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		bars.LineStyle.Color = plotutil.Color(series)
		p.Add(sc, bars)
		p.Legend.Add(t.Name(), sc)
		series++
	}
	if series == 0 {
		return nil, ErrNothingToPlot
	}
	return p, nil
}

// WritePlot renders the NET plot to w as png or svg.
func WritePlot(w io.Writer, tables []ensemble.Table, format string) error {
	p, err := NETPlot(tables)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, strings.ToLower(format))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
