package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

// JobRunner is satisfied by *evaluation.Orchestrator.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (models.Job, error)
}

// Handler runs the job named by each delivery and settles it. The message
// is acked once the job is terminal (or unknown). A job that is still live
// after the run, because another worker holds it or its failure could not be
// recorded, is requeued after BusyDelay so a stale job is eventually taken
// over once its LiveJobTTL passes.
type Handler struct {
	Runner    JobRunner
	Logger    *zap.Logger
	BusyDelay time.Duration
}

func (h *Handler) Handle(ctx context.Context, d amqp.Delivery) {
	log := logger.OrNop(h.Logger)

	msg, err := DecodeJobMessage(d.Body)
	if err != nil {
		log.Error("dropping malformed message", zap.Error(err), zap.String("body", logger.TruncateForLog(string(d.Body), 200)))
		_ = d.Nack(false, false)
		return
	}
	log = log.With(zap.String(logger.FieldJobID, msg.JobID.String()))

	runErr := h.Runner.Run(ctx, msg.JobID)
	if errors.Is(runErr, evaluation.ErrJobNotFound) || errors.Is(runErr, evaluation.ErrSubjectNotFound) {
		log.Error("dropping message for unknown job", zap.Error(runErr))
		_ = d.Ack(false)
		return
	}

	job, err := h.Runner.GetJob(context.WithoutCancel(ctx), msg.JobID)
	switch {
	case errors.Is(err, evaluation.ErrJobNotFound):
		log.Error("dropping message for unknown job", zap.Error(err))
		_ = d.Ack(false)
		return
	case err == nil && job.Status.Terminal():
		if runErr != nil {
			log.Info("job finished with error", zap.Error(runErr))
		}
		_ = d.Ack(false)
		return
	case runErr == nil && err == nil:
		log.Info("job still live, requeueing", zap.String("status", string(job.Status)), zap.Duration("delay", h.BusyDelay))
	default:
		log.Warn("job not settled, requeueing", zap.Error(errors.Join(runErr, err)), zap.Duration("delay", h.BusyDelay))
	}

	h.wait(ctx)
	_ = d.Nack(false, true)
}

func (h *Handler) wait(ctx context.Context) {
	if h.BusyDelay <= 0 {
		return
	}
	timer := time.NewTimer(h.BusyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
