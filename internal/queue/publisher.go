package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
)

// Publisher dispatches jobs to the evaluations queue and fans status
// updates out on the updates exchange. Each publish uses its own channel.
type Publisher struct {
	conn *amqp.Connection
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("error connecting to rabbitmq channel: %w", err)
	}
	defer ch.Close()
	if err := Declare(ch); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) publish(exchange, key string, body []byte, persistent bool) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	}
	if persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	return ch.Publish(exchange, key, false, false, msg)
}

func (p *Publisher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}
	if err := p.publish("", EvaluationsQueue, body, true); err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return nil
}

func (p *Publisher) Notify(ctx context.Context, update evaluation.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.publish(UpdatesExchange, UpdateRoutingKey(update.JobID), body, false)
}
