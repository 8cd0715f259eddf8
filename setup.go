package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/config"
	"github.com/muhammadolammi/skillmatchworker/internal/database"
	"github.com/muhammadolammi/skillmatchworker/internal/documents"
	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/github"
	"github.com/muhammadolammi/skillmatchworker/internal/inference"
	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/queue"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
	"github.com/muhammadolammi/skillmatchworker/internal/signals"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.JSON, cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*database.Store, error) {
	dialect, _ := database.DialectFor(cfg.DatabaseURL)
	log.Debug("opening database", zap.String("dialect", string(dialect)))
	return database.Open(ctx, cfg.DatabaseURL, log.Named("database"))
}

// newBucket returns nil when no R2 credentials are configured.
func newBucket(ctx context.Context, cfg *config.Config) (*r2.Bucket, error) {
	if !cfg.R2Configured() {
		return nil, nil
	}
	r2Config := cfg.R2Config()
	if err := r2Config.Validate(); err != nil {
		return nil, err
	}
	client, err := r2.NewClient(ctx, r2Config)
	if err != nil {
		return nil, err
	}
	return r2.NewBucket(client, r2Config.Bucket), nil
}

func newSignalSource(cfg *config.Config, bucket *r2.Bucket, log *zap.Logger) (*signals.Multi, error) {
	gh, err := github.NewClient(cfg.GitHubOptions(), log.Named("github"))
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	sources := []signals.Named{{Name: github.SourceName, Source: gh}}

	if cfg.Documents.Enabled {
		if bucket == nil {
			return nil, errors.New("documents are enabled but no R2 bucket is configured")
		}
		sources = append(sources, signals.Named{
			Name:     documents.SourceName,
			Source:   documents.NewSource(bucket, cfg.Documents.Prefix, log.Named("documents")),
			Optional: true,
		})
	}
	return signals.NewMulti(log, sources...)
}

func newInferer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*inference.Inferer, error) {
	completer, err := inference.NewCompleter(ctx, cfg.AI.Backend, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s completer: %w", cfg.AI.Backend, err)
	}
	return inference.NewInferer(completer, cfg.InferenceOptions(), log.Named("inference")), nil
}

// newWorkerConfig wires the orchestrator. With withQueue set jobs are
// dispatched and status updates published over RabbitMQ; otherwise the
// caller sets a dispatcher.
func newWorkerConfig(ctx context.Context, cfg *config.Config, log *zap.Logger, withQueue bool) (*WorkerConfig, error) {
	if err := cfg.RequireWorker(); err != nil {
		return nil, err
	}
	if withQueue {
		if err := cfg.RequireQueue(); err != nil {
			return nil, err
		}
	}

	w := &WorkerConfig{Config: cfg, Logger: log}
	ok := false
	defer func() {
		if !ok {
			w.Close()
		}
	}()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	w.DB = store

	if w.Bucket, err = newBucket(ctx, cfg); err != nil {
		return nil, fmt.Errorf("error creating r2 client: %w", err)
	}
	source, err := newSignalSource(cfg, w.Bucket, log)
	if err != nil {
		return nil, err
	}
	inferer, err := newInferer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := evaluation.Deps{
		Store:      store,
		Signals:    source,
		Inferer:    inferer,
		Vocabulary: textvec.NewVocabularyCache(store),
		Logger:     log.Named("evaluation"),
	}
	w.Vocabulary = deps.Vocabulary

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			if withQueue {
				return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
			}
			log.Warn("rabbitmq unavailable, status updates disabled", zap.Error(err))
		} else {
			w.RabbitConn = conn
			if w.Publisher, err = queue.NewPublisher(conn); err != nil {
				return nil, err
			}
			deps.Notifier = w.Publisher
			if withQueue {
				deps.Dispatcher = w.Publisher
			}
		}
	}

	if w.Orchestrator, err = evaluation.New(deps, cfg.EvaluationOptions()); err != nil {
		return nil, err
	}
	ok = true
	return w, nil
}
