package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fareradar/internal/pricehistory"
	"fareradar/internal/storage"
)

// Export renders a route's price samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	history := a.newServices(store, a.newProvider(), nil).history
	return a.exportRoute(ctx, history, opts)
}

func (a *App) exportRoute(ctx context.Context, history *pricehistory.Service, opts ExportOptions) error {
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)
	origin := strings.ToUpper(opts.Origin)
	dest := strings.ToUpper(opts.Destination)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-pricehistory.BucketTTL)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := history.RouteSamples(ctx, origin, dest, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Str("route", origin+"-"+dest).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, origin+"-"+dest, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsampleSamples(samples []storage.PriceSample, max int) []storage.PriceSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.PriceSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.PriceSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"observed_at", "origin", "destination", "travel_month", "price", "bucket_key"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		record := []string{
			s.ObservedAt.UTC().Format(time.RFC3339),
			s.Origin,
			s.Destination,
			s.Month,
			strconv.Itoa(s.Price),
			s.BucketKey,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeSamplesPNG plots observed prices with their running minimum.
func writeSamplesPNG(path, route string, samples []storage.PriceSample) error {
	if len(samples) < 2 {
		return fmt.Errorf("need at least 2 samples to chart, have %d", len(samples))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	prices := make([]float64, len(samples))
	runningMin := make([]float64, len(samples))
	lowest := math.MaxFloat64
	for i, s := range samples {
		x[i] = s.ObservedAt
		prices[i] = float64(s.Price)
		lowest = math.Min(lowest, prices[i])
		runningMin[i] = lowest
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  route,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (BRL)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Observed",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Lowest so far",
				XValues: x,
				YValues: runningMin,
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
