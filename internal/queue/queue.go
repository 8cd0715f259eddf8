// Package queue carries evaluation jobs and their status updates over
// RabbitMQ.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

const (
	// EvaluationsQueue holds job ids waiting for a worker.
	EvaluationsQueue = "evaluations"
	// UpdatesExchange is a topic exchange; routing keys are evaluation.<job id>.
	UpdatesExchange = "evaluation_updates"
)

func UpdateRoutingKey(jobID uuid.UUID) string {
	return fmt.Sprintf("evaluation.%s", jobID)
}

// JobMessage is the body of a message on EvaluationsQueue.
type JobMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

func DecodeJobMessage(body []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return JobMessage{}, fmt.Errorf("error unmarshalling message body: %w", err)
	}
	if msg.JobID == uuid.Nil {
		return JobMessage{}, errors.New("message has no job id")
	}
	return msg, nil
}

// Declare makes sure the queue and the updates exchange exist.
func Declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		EvaluationsQueue, // queue name
		true,             // durable (survives broker restarts)
		false,            // auto-delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	err = ch.ExchangeDeclare(
		UpdatesExchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}
