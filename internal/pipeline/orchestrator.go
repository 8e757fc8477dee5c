package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/config"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// IdleUnloader releases the model after a period without use.
type IdleUnloader interface {
	UnloadIfIdle(ttl time.Duration) bool
}

// Orchestrator manages the asynchronous extraction pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	models IdleUnloader
	log    *slog.Logger
	cfg    config.Config

	cleanupEvery time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. models may be nil when idle unloading
// is not wanted.
func NewOrchestrator(cfg config.Config, w *Worker, models IdleUnloader, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:         NewJobStore(cfg.JobTTL),
		queue:        make(chan *Job, cfg.MaxQueueSize),
		worker:       w,
		models:       models,
		log:          log,
		cfg:          cfg,
		cleanupEvery: 5 * time.Minute,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.every(workerCtx, o.cleanupEvery, func() {
		if n := o.jobs.Cleanup(); n > 0 {
			o.log.Debug("expired jobs removed", "count", n)
		}
	})

	if ttl := o.cfg.ModelIdleTTL; ttl > 0 && o.models != nil {
		o.every(workerCtx, idleCheckInterval(ttl), func() {
			o.models.UnloadIfIdle(ttl)
		})
	}
}

func (o *Orchestrator) every(ctx context.Context, d time.Duration, fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// idleCheckInterval polls often enough that the model is released within
// about half a ttl of going idle.
func idleCheckInterval(ttl time.Duration) time.Duration {
	d := ttl / 2
	if d > time.Minute {
		d = time.Minute
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		err := fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
		job.Fail(err)
		job.SetStatus(StatusFailed, "queue_full")
		return err
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// JobCount returns the number of tracked jobs.
func (o *Orchestrator) JobCount() int {
	return o.jobs.Len()
}
