package cli

import (
	"github.com/spf13/cobra"

	"fareradar/internal/app"
)

var rankJSON bool

var rankCmd = &cobra.Command{
	Use:   "rank <flights.json>",
	Short: "Label a JSON file of flights as cheapest, fastest and best balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Rank(cmd.Context(), app.RankOptions{InputPath: args[0], JSON: rankJSON})
	},
}

func init() {
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "Print annotated flights as JSON")
}
