package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fareradar/internal/app"
	"fareradar/internal/flights"
)

var (
	backfillRoute  routeFlags
	backfillFrom   string
	backfillTo     string
	backfillStep   int
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Search a range of departure dates and record the observed prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backfillRoute.validate(); err != nil {
			return err
		}
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := time.Parse(flights.DateLayout, backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		to, err := time.Parse(flights.DateLayout, backfillTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		if to.Before(from) {
			return fmt.Errorf("--from must not be after --to")
		}
		if backfillStep <= 0 {
			return fmt.Errorf("--step must be greater than zero")
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			Origin:      backfillRoute.origin,
			Destination: backfillRoute.destination,
			From:        from,
			To:          to,
			Step:        backfillStep,
			DryRun:      backfillDryRun,
		})
	},
}

func init() {
	backfillRoute.register(backfillCmd)
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First departure date (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last departure date (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().IntVar(&backfillStep, "step", 1, "Days between searched departure dates")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Search without recording prices")
}
