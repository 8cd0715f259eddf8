package main

import (
	"github.com/spf13/cobra"

	"github.com/muhammadolammi/skillmatchworker/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the job posting catalog",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load [source]",
	Short: "Replace the catalog with NDJSON postings from a file or s3://bucket/key",
	Long: "Replace the catalog with NDJSON postings from a local file or an R2 object.\n" +
		"Without a source (and no catalog.source configured) or with a missing file, a demo catalog is loaded.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		source := cfg.Catalog.Source
		if len(args) == 1 {
			source = args[0]
		}

		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		bucket, err := newBucket(ctx, cfg)
		if err != nil {
			return err
		}

		loader := catalog.NewLoader(store, bucket, cfg.CatalogOptions(), log.Named("catalog"))
		result, err := loader.Load(ctx, source)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	catalogCmd.AddCommand(catalogLoadCmd)
	rootCmd.AddCommand(catalogCmd)
}
