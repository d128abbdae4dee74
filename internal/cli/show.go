package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fareradar/internal/app"
)

var (
	showRoute  routeFlags
	showWindow int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a route's price history buckets and rolling aggregate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := showRoute.validate(); err != nil {
			return err
		}
		if showWindow < 0 {
			return fmt.Errorf("--window-days cannot be negative")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			Origin:      showRoute.origin,
			Destination: showRoute.destination,
			WindowDays:  showWindow,
		})
	},
}

func init() {
	showRoute.register(showCmd)
	showCmd.Flags().IntVar(&showWindow, "window-days", 0, "Aggregate window in days (defaults to config)")
}
