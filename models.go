package main

import (
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/config"
	"github.com/muhammadolammi/skillmatchworker/internal/database"
	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/queue"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

// WorkerConfig holds everything a running worker shares between consumers.
type WorkerConfig struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *database.Store
	Bucket       *r2.Bucket
	Vocabulary   *textvec.VocabularyCache
	Orchestrator *evaluation.Orchestrator
	// RabbitConn and Publisher are nil for inline evaluations without a
	// broker.
	RabbitConn *amqp.Connection
	Publisher  *queue.Publisher
}

func (w *WorkerConfig) Close() {
	if w.RabbitConn != nil {
		if err := w.RabbitConn.Close(); err != nil {
			w.Logger.Warn("closing rabbitmq connection", zap.Error(err))
		}
	}
	if w.DB != nil {
		if err := w.DB.Close(); err != nil {
			w.Logger.Warn("closing database", zap.Error(err))
		}
	}
}
