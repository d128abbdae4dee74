package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/flights"
	"fareradar/internal/provider"
	"fareradar/internal/service"
)

type backfillReport struct {
	Dates    int
	Offers   int
	Recorded int
	Failed   int
}

// Backfill searches every departure date in [From, To] and records the prices
// observed, seeding history for a route.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	opts.Origin = strings.ToUpper(opts.Origin)
	opts.Destination = strings.ToUpper(opts.Destination)
	if opts.Step <= 0 {
		opts.Step = 1
	}

	p := a.newProvider()

	var recorder service.PriceRecorder
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: prices will not be recorded")
	} else {
		store, closeStore, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		recorder = a.newServices(store, p, nil).history
	}

	report, err := backfill(ctx, p, recorder, opts, a.Logger)
	a.Logger.Info().
		Int("dates", report.Dates).
		Int("offers", report.Offers).
		Int("recorded", report.Recorded).
		Int("failed", report.Failed).
		Msg("backfill finished")
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("backfill: %d of %d dates failed, see log", report.Failed, report.Dates)
	}
	return nil
}

// backfill records synchronously so the process can exit as soon as it returns.
// A nil recorder only counts offers.
func backfill(ctx context.Context, p provider.SearchProvider, recorder service.PriceRecorder, opts BackfillOptions, logger zerolog.Logger) (backfillReport, error) {
	var report backfillReport
	start := opts.From.UTC().Truncate(24 * time.Hour)
	end := opts.To.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return report, errors.New("backfill range is empty; check --from/--to")
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, opts.Step) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Dates++

		q := flights.SearchQuery{
			From:   opts.Origin,
			To:     opts.Destination,
			Depart: day.Format(flights.DateLayout),
			Adults: 1,
			Max:    50,
		}
		results, err := p.Search(ctx, q)
		if err != nil {
			logger.Warn().Err(err).Str("provider", p.Name()).Str("depart", q.Depart).Msg("backfill search failed")
			report.Failed++
			continue
		}
		report.Offers += len(results)

		if recorder == nil {
			continue
		}
		n, err := recorder.RecordSearchPrices(ctx, results)
		report.Recorded += n
		if err != nil {
			logger.Warn().Err(err).Str("depart", q.Depart).Int("recorded", n).Msg("backfill record failed")
			report.Failed++
		}
	}
	return report, nil
}
