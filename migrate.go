package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhammadolammi/skillmatchworker/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		down, _ := cmd.Flags().GetBool("down")

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		// Open applies every pending version.
		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		migrator := database.Migrator{}
		if down {
			if err := migrator.DownOne(ctx, store.DB()); err != nil {
				return err
			}
		}
		v, err := migrator.Version(ctx, store.DB())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (latest %d)\n", v, database.LatestVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "roll back the newest applied version")
}
