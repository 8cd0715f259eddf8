package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

var (
	_ evaluation.Dispatcher = (*Publisher)(nil)
	_ evaluation.Notifier   = (*Publisher)(nil)
	_ JobRunner             = (*evaluation.Orchestrator)(nil)
)

type ackRecorder struct {
	acked    int
	nacked   int
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

type stubRunner struct {
	runErr error
	job    models.Job
	getErr error
	ran    []uuid.UUID
}

func (s *stubRunner) Run(_ context.Context, id uuid.UUID) error {
	s.ran = append(s.ran, id)
	return s.runErr
}

func (s *stubRunner) GetJob(context.Context, uuid.UUID) (models.Job, error) {
	return s.job, s.getErr
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestDecodeJobMessage(t *testing.T) {
	id := uuid.New()
	msg, err := DecodeJobMessage([]byte(fmt.Sprintf(`{"job_id":"%s"}`, id)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.JobID != id {
		t.Fatalf("job id = %s, want %s", msg.JobID, id)
	}

	for _, body := range []string{``, `not json`, `{}`, `{"job_id":"nope"}`} {
		if _, err := DecodeJobMessage([]byte(body)); err == nil {
			t.Errorf("DecodeJobMessage(%q) succeeded", body)
		}
	}
}

func TestUpdateRoutingKey(t *testing.T) {
	id := uuid.MustParse("2b1d6f3e-7c55-4c1c-9f7e-0d7a4d0f9a11")
	if got := UpdateRoutingKey(id); got != "evaluation.2b1d6f3e-7c55-4c1c-9f7e-0d7a4d0f9a11" {
		t.Fatalf("routing key = %q", got)
	}
}

func TestHandle(t *testing.T) {
	id := uuid.New()
	body := fmt.Sprintf(`{"job_id":"%s"}`, id)

	tests := []struct {
		name        string
		body        string
		runner      *stubRunner
		wantAck     int
		wantNack    int
		wantRequeue bool
		wantRun     bool
	}{
		{
			name:     "malformed body is dropped",
			body:     `{"job":1}`,
			runner:   &stubRunner{},
			wantNack: 1,
		},
		{
			name:    "successful run is acked",
			body:    body,
			runner:  &stubRunner{job: models.Job{ID: id, Status: models.JobSuccess}},
			wantAck: 1,
			wantRun: true,
		},
		{
			name:        "job running elsewhere is requeued",
			body:        body,
			runner:      &stubRunner{job: models.Job{ID: id, Status: models.JobRunning}},
			wantNack:    1,
			wantRequeue: true,
			wantRun:     true,
		},
		{
			name: "job left running after a failed settle is requeued",
			body: body,
			runner: &stubRunner{
				runErr: &evaluation.UpstreamFetchError{Op: "list units", Err: errors.New("502")},
				job:    models.Job{ID: id, Status: models.JobRunning},
			},
			wantNack:    1,
			wantRequeue: true,
			wantRun:     true,
		},
		{
			name:        "unreadable job is requeued",
			body:        body,
			runner:      &stubRunner{job: models.Job{ID: id, Status: models.JobSuccess}, getErr: errors.New("connection refused")},
			wantNack:    1,
			wantRequeue: true,
			wantRun:     true,
		},
		{
			name:    "unknown job is acked",
			body:    body,
			runner:  &stubRunner{runErr: fmt.Errorf("load: %w", evaluation.ErrJobNotFound)},
			wantAck: 1,
			wantRun: true,
		},
		{
			name: "failed job is acked",
			body: body,
			runner: &stubRunner{
				runErr: &evaluation.PersistenceError{Op: "replace skills", Err: errors.New("disk full")},
				job:    models.Job{ID: id, Status: models.JobError},
			},
			wantAck: 1,
			wantRun: true,
		},
		{
			name: "unsettled job is requeued",
			body: body,
			runner: &stubRunner{
				runErr: &evaluation.PersistenceError{Op: "start job", Err: errors.New("connection refused")},
				job:    models.Job{ID: id, Status: models.JobQueued},
			},
			wantNack:    1,
			wantRequeue: true,
			wantRun:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &ackRecorder{}
			h := &Handler{Runner: tt.runner}
			h.Handle(context.Background(), delivery(ack, tt.body))

			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack {
				t.Fatalf("acked=%d nacked=%d, want acked=%d nacked=%d", ack.acked, ack.nacked, tt.wantAck, tt.wantNack)
			}
			if ack.requeued != tt.wantRequeue {
				t.Fatalf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
			if ran := len(tt.runner.ran) > 0; ran != tt.wantRun {
				t.Fatalf("ran = %v, want %v", ran, tt.wantRun)
			}
			if tt.wantRun && tt.runner.ran[0] != id {
				t.Fatalf("ran job %s, want %s", tt.runner.ran[0], id)
			}
		})
	}
}

func TestHandleWaitsBeforeRequeue(t *testing.T) {
	id := uuid.New()
	ack := &ackRecorder{}
	h := &Handler{
		Runner:    &stubRunner{job: models.Job{ID: id, Status: models.JobRunning}},
		BusyDelay: 20 * time.Millisecond,
	}

	start := time.Now()
	h.Handle(context.Background(), delivery(ack, fmt.Sprintf(`{"job_id":"%s"}`, id)))
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("requeued after %s, want at least the busy delay", elapsed)
	}
	if ack.nacked != 1 || !ack.requeued {
		t.Fatalf("expected requeue, got %+v", ack)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ack = &ackRecorder{}
	h.BusyDelay = time.Hour
	h.Handle(ctx, delivery(ack, fmt.Sprintf(`{"job_id":"%s"}`, id)))
	if ack.nacked != 1 || !ack.requeued {
		t.Fatalf("expected requeue on shutdown, got %+v", ack)
	}
}
