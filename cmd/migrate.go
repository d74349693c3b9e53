package cmd

import (
	"github.com/spf13/cobra"

	"kbtrial/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		// Open migrates.
		if _, err := database.Open(a.cfg.Database, a.log); err != nil {
			return err
		}
		a.log.Info("Database migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
