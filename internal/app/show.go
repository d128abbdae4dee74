package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"fareradar/internal/insight"
	"fareradar/internal/pricehistory"
)

const showTimeLayout = "2006-01-02 15:04"

// Show prints a route's month buckets and its rolling aggregate.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	history := a.newServices(store, a.newProvider(), nil).history
	return a.showRoute(ctx, history, opts)
}

func (a *App) showRoute(ctx context.Context, history *pricehistory.Service, opts ShowOptions) error {
	origin := strings.ToUpper(opts.Origin)
	dest := strings.ToUpper(opts.Destination)
	window := opts.WindowDays
	if window <= 0 {
		window = a.Config.PriceHistory.WindowDays
	}

	buckets, err := history.RouteBuckets(ctx, origin, dest)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		fmt.Fprintf(a.Out, "no price history for %s-%s\n", origin, dest)
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Bucket\tSamples\tMin\tAverage\tFirst seen (UTC)\tLast seen (UTC)")
	for _, b := range buckets {
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%s\t%s\n",
			b.RouteKey,
			b.SampleCount,
			b.MinPrice,
			b.AveragePrice,
			b.WindowStart.Format(showTimeLayout),
			b.WindowEnd.Format(showTimeLayout),
		)
	}
	writer.Flush()

	agg, err := history.GetPriceHistoryForRoute(ctx, origin, dest, window)
	if err != nil {
		return err
	}
	status := "ready"
	if !insight.Sufficient(agg) {
		status = fmt.Sprintf("needs %d samples", insight.MinSamples)
	}
	fmt.Fprintf(a.Out, "\nlast %d days: %d samples, min %d, average %d (insights %s)\n",
		window, agg.SampleCount, agg.MinPrice, agg.AveragePrice, status)
	return nil
}
