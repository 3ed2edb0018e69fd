package report

import (
	"errors"
	"fmt"
	"io"

	"expenseflow/internal/core"

	"github.com/wcharczuk/go-chart/v2"
)

var ErrNoData = errors.New("no data to chart")

// ChartOptions controls the category bar chart.
type ChartOptions struct {
	Title  string
	Width  int
	Height int
	// MaxBars keeps the largest categories; 0 keeps them all.
	MaxBars int
}

func DefaultChartOptions() ChartOptions {
	return ChartOptions{Title: "Totals by category", Width: 800, Height: 400, MaxBars: 12}
}

// CategoryChart renders totals as a PNG bar chart, in the order given.
func CategoryChart(w io.Writer, totals []core.CategoryAmount, opts ChartOptions) error {
	if opts.MaxBars > 0 && len(totals) > opts.MaxBars {
		totals = totals[:opts.MaxBars]
	}
	if len(totals) == 0 {
		return ErrNoData
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultChartOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}

	bars := make([]chart.Value, 0, len(totals))
	top := 0.0
	for _, t := range totals {
		v, _ := t.Amount.Float64()
		if v > top {
			top = v
		}
		bars = append(bars, chart.Value{Label: t.Name, Value: v})
	}
	if top <= 0 {
		top = 1
	}

	barChart := chart.BarChart{
		Title: opts.Title,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  opts.Width,
		Height: opts.Height,
		Bars:   bars,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if vf, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", vf)
				}
				return ""
			},
		},
	}

	if err := barChart.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
