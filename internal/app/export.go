package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"prediction-arena/internal/arena"
)

// Export renders a seeded synthetic price walk over one full match window
// as CSV and/or PNG, annotated with the derived round and phase of each
// second. Useful for eyeballing how the phase clock carves up a series.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	rules := a.rules()
	rng := rand.New(rand.NewSource(opts.Seed))

	price := decimal.NewFromFloat(a.Config.Price.FallbackPrice)
	jitter := decimal.NewFromFloat(a.Config.Price.Jitter)
	base := time.Now().UTC()

	total := rules.MatchSeconds() + 1
	if limit := a.Config.Export.MaxDataPoints; limit > 0 && total > limit {
		total = limit
	}

	points := make([]arena.PricePoint, 0, total)
	for t := 0; t < total; t++ {
		price = price.Add(jitter.Mul(decimal.NewFromFloat(rng.Float64()*2 - 1)))
		points = append(points, arena.PricePoint{
			Timestamp: base.Add(time.Duration(t) * time.Second),
			Price:     price,
		})
	}

	if opts.CSVPath != "" {
		if err := writePathCSV(opts.CSVPath, rules, points); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writePathPNG(opts.PNGPath, points); err != nil {
			return err
		}
	}

	a.Logger.Info().Int("points", len(points)).Int64("seed", opts.Seed).Msg("exported price path")
	return nil
}

func writePathCSV(path string, rules arena.Rules, points []arena.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"elapsed_s", "timestamp", "price", "round", "phase", "phase_remaining_s"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, point := range points {
		reading := rules.DeriveClock(i)
		record := []string{
			strconv.Itoa(i),
			point.Timestamp.Format(time.RFC3339),
			point.Price.String(),
			strconv.Itoa(reading.Round),
			string(reading.Phase),
			strconv.Itoa(reading.Remaining),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePathPNG(path string, points []arena.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, point := range points {
		x[i] = point.Timestamp
		y[i] = point.Price.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Synthetic walk",
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
