package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueStock = "jobs:stock"

	JobAudit     = "stock_audit"
	JobRecompute = "recompute_parent"

	MaxJobAttempts = 3
)

// Job is the envelope for every async task.
type Job struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type AuditPayload struct {
	RequestedBy string `json:"requested_by"`
}

type RecomputePayload struct {
	ParentID uuid.UUID `json:"parent_id"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAudit schedules a full recompute; the id lets the caller correlate logs.
func (d *Dispatcher) EnqueueAudit(ctx context.Context, requestedBy string) (string, error) {
	return d.enqueue(ctx, JobAudit, AuditPayload{RequestedBy: requestedBy})
}

func (d *Dispatcher) EnqueueRecompute(ctx context.Context, parentID uuid.UUID) (string, error) {
	return d.enqueue(ctx, JobRecompute, RecomputePayload{ParentID: parentID})
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	job := Job{ID: uuid.NewString(), Type: jobType, Payload: data}
	if err := push(ctx, d.rdb, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job.ID, nil
}

func push(ctx context.Context, rdb *redis.Client, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, QueueStock, encoded).Err()
}

// Handler executes one job type.
type Handler func(ctx context.Context, payload json.RawMessage) error

// errPermanent marks a job that will never succeed; it goes straight to the DLQ.
var errPermanent = errors.New("permanent job failure")

// errDeferred marks a job that could not start yet, e.g. while the audit
// breaker is open. It is requeued after deferDelay without spending an attempt.
var errDeferred = errors.New("job deferred")

const deferDelay = 5 * time.Second

type jobOutcome int

const (
	jobDone jobOutcome = iota
	jobRetry
	jobDeferred
	jobDead
)

// settle charges err to job and decides where it goes next.
func settle(job *Job, err error) jobOutcome {
	switch {
	case err == nil:
		return jobDone
	case errors.Is(err, errDeferred):
		return jobDeferred
	}
	job.Attempts++
	if errors.Is(err, errPermanent) || job.Attempts >= MaxJobAttempts {
		return jobDead
	}
	return jobRetry
}

// StartWorkerPool launches numWorkers goroutines consuming QueueStock.
// Each goroutine blocks on BRPOP, so an idle pool costs nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Int("workers", numWorkers).Msg("worker pool started")
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Waits up to 5s, then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueStock).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("queue read failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[1])
		}
	}
}

// processJob runs one job. A failed job is pushed back with its attempt
// count bumped; after MaxJobAttempts, or on a permanent failure, it is moved
// to the DLQ. A deferred job waits and goes back unchanged.
func processJob(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Err(err).Msg("discarding malformed job")
		SendToDLQ(ctx, rdb, QueueStock, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), err.Error(), 0)
		return
	}

	h, ok := handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, rdb, QueueStock, job.Type, job.Payload, "no handler for job type", job.Attempts)
		return
	}

	start := time.Now()
	err := h(ctx, job.Payload)
	switch settle(&job, err) {
	case jobDone:
		log.Info().
			Str("job_id", job.ID).
			Str("type", job.Type).
			Dur("took", time.Since(start)).
			Msg("job done")
		return
	case jobDead:
		SendToDLQ(ctx, rdb, QueueStock, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	case jobDeferred:
		log.Debug().Err(err).Str("job_id", job.ID).Str("type", job.Type).Msg("job deferred")
		select {
		case <-ctx.Done():
		case <-time.After(deferDelay):
		}
		// Requeue even during shutdown so the job survives the restart.
		ctx = context.WithoutCancel(ctx)
	case jobRetry:
		log.Warn().Err(err).
			Str("job_id", job.ID).
			Str("type", job.Type).
			Int("attempt", job.Attempts).
			Msg("job failed, requeued")
	}
	if err := push(ctx, rdb, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("requeue failed")
	}
}
