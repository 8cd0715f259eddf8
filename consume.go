package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/queue"
)

var errDeliveriesClosed = errors.New("rabbitmq closed the delivery channel")

// worker consumes the evaluations queue on its own connection, one
// unacknowledged message at a time, until ctx is done.
func worker(ctx context.Context, id int, workerConfig *WorkerConfig) error {
	log := workerConfig.Logger.With(zap.Int("worker", id+1))

	conn, err := amqp.Dial(workerConfig.Config.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("error dialling rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("error connecting to rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := queue.Declare(ch); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting prefetch: %w", err)
	}

	msgs, err := ch.Consume(
		queue.EvaluationsQueue, // queue name
		"",                     // consumer tag
		false,                  // auto-ack
		false,                  // exclusive
		false,                  // no-local
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("error consuming rabbitmq message: %w", err)
	}

	handler := &queue.Handler{
		Runner:    workerConfig.Orchestrator,
		Logger:    log,
		BusyDelay: workerConfig.Config.Worker.RequeueDelay,
	}

	log.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			handler.Handle(ctx, msg)
		}
	}
}

// StartConsumerWorkerPool runs numWorkers consumers and blocks until all of
// them return. A consumer that fails cancels the others.
func (workerConfig *WorkerConfig) StartConsumerWorkerPool(ctx context.Context, numWorkers int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(numWorkers)
	for i := range numWorkers {
		go func() {
			defer wg.Done()
			if err := worker(ctx, i, workerConfig); err != nil {
				workerConfig.Logger.Error("worker exited", zap.Int("worker", i+1), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancel()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
