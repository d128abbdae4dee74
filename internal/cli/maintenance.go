package cli

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Migrate(cmd.Context())
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired price buckets, rate-limit windows and cache rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Purge(cmd.Context())
	},
}
