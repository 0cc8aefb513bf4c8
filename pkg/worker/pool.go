// Package worker provides an asynchronous worker pool for persisting finished
// generations using the provided history.Driver.
//
// The pool keeps history writes off the path that renders generated text, so
// a slow or failing store never delays the output.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/fuhaigao/inference-server/pkg/history"
	"github.com/fuhaigao/inference-server/pkg/logger"
)

var (
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 64
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *history.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the history backend for persisting records.
	Driver history.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes history jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a history driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"id", job.Record.ID,
			"mode", job.Record.Mode,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"id", job.Record.ID,
			"mode", job.Record.Mode,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Enqueue must not be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("history worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.Put(ctx, job.Record); err != nil {
		p.logger.Error("storing generation failed",
			"id", job.Record.ID,
			"error", err,
		)
		return
	}

	p.logger.Debug("generation stored",
		"id", job.Record.ID,
		"status", job.Record.Status,
		"duration", job.Record.Duration(),
	)
}
