package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume evaluation jobs from RabbitMQ",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		if n, _ := cmd.Flags().GetInt("consumers"); n > 0 {
			cfg.Worker.Consumers = n
		}

		workerConfig, err := newWorkerConfig(ctx, cfg, log, true)
		if err != nil {
			return err
		}
		defer workerConfig.Close()

		log.Info("starting consumer pool",
			zap.String("version", version),
			zap.Int("consumers", cfg.Worker.Consumers),
			zap.String("backend", cfg.AI.Backend),
		)
		return workerConfig.StartConsumerWorkerPool(ctx, cfg.Worker.Consumers)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().IntP("consumers", "n", 0, "number of queue consumers (default from worker.consumers)")
}
