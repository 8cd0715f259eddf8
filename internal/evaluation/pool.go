package evaluation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/logger"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// Pool is an in-process Dispatcher: a fixed number of workers draining a
// buffered queue of job ids.
type Pool struct {
	jobs    chan uuid.UUID
	workers int
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(workers, buffer int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Pool{
		jobs:    make(chan uuid.UUID, buffer),
		workers: workers,
		logger:  logger.OrNop(log),
	}
}

// Start launches the workers. They stop once Close is called and the queue
// is drained, or when ctx is done.
func (p *Pool) Start(ctx context.Context, runner Runner) {
	p.wg.Add(p.workers)
	for i := range p.workers {
		p.logger.Debug("worker started", zap.Int("worker", i+1))
		go p.work(ctx, i+1, runner)
	}
}

func (p *Pool) work(ctx context.Context, id int, runner Runner) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.jobs:
			if !ok {
				return
			}
			p.logger.Info("worker processing job", zap.Int("worker", id), zap.String(logger.FieldJobID, jobID.String()))
			if err := runner.Run(ctx, jobID); err != nil {
				p.logger.Error("job failed", zap.Int("worker", id), zap.String(logger.FieldJobID, jobID.String()), zap.Error(err))
			}
		}
	}
}

func (p *Pool) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
