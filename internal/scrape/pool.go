package scrape

import (
	"context"
	"fmt"
	"sync"

	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// Job is one extraction request handed to the pool.
type Job struct {
	Source   *article.Source
	Strategy *article.ExtractionStrategy
	PageURL  string
}

// Result pairs a finished job with its outcome.
type Result struct {
	Job     Job
	Outcome Outcome
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:   4,
		QueueSize: 64,
	}
}

// Pool fans extraction jobs out to a fixed set of workers sharing one
// executor. Per-domain spacing is handled inside the executor, so sizing
// the pool only bounds cross-domain concurrency.
type Pool struct {
	executor *Executor
	config   *PoolConfig

	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool creates a pool around executor.
func NewPool(executor *Executor, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	return &Pool{
		executor: executor,
		config:   config,
		jobs:     make(chan Job, config.QueueSize),
		results:  make(chan Result, config.QueueSize),
	}
}

// Start launches the workers. It is a no-op on a pool that already
// started.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	log.Info().Int("workers", p.config.Workers).Msg("Scrape pool started")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			outcome := p.executor.Run(ctx, job.Source, job.Strategy, job.PageURL)
			select {
			case p.results <- Result{Job: job, Outcome: outcome}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			log.Debug().Int("worker", id).Msg("Scrape worker stopping")
			return
		}
	}
}

// Submit enqueues a job, blocking when the queue is full. The read lock
// spans the send itself, so Stop cannot close the queue under a submit
// that is already in flight.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return fmt.Errorf("pool is stopped")
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results exposes the outcome stream. The channel closes after Stop once
// all in-flight jobs have finished.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop closes the queue, waits for in-flight jobs and closes the result
// stream.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)

	log.Info().Msg("Scrape pool stopped")
}
