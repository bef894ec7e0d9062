package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/anime-shed/street-inspector-go/internal/imaging"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("inference pool is closed")

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Workers       int
	TotalJobs     int64
	CompletedJobs int64
	ActiveWorkers int64
}

// InferencePool runs jobs on a fixed set of workers, each owning one model replica,
// so a replica never sees two forward passes at once.
type InferencePool struct {
	replicas []Model
	jobQueue chan func(Model)
	wg       sync.WaitGroup // pending jobs
	workers  sync.WaitGroup
	once     sync.Once
	mu       sync.RWMutex
	closed   bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	activeWorkers atomic.Int64
}

// NewInferencePool creates a pool with one worker per replica.
func NewInferencePool(replicas []Model) *InferencePool {
	return &InferencePool{
		replicas: replicas,
		jobQueue: make(chan func(Model), len(replicas)*2),
	}
}

// Start launches the workers. Calling it more than once is harmless.
func (p *InferencePool) Start() {
	p.once.Do(func() {
		for _, m := range p.replicas {
			p.workers.Add(1)
			go p.worker(m)
		}
	})
}

func (p *InferencePool) worker(m Model) {
	defer p.workers.Done()
	for job := range p.jobQueue {
		p.activeWorkers.Add(1)
		job(m)
		p.activeWorkers.Add(-1)
		p.completedJobs.Add(1)
		p.wg.Done()
	}
}

// Submit queues a job, blocking while the queue is full. It returns false if the
// pool is closed or ctx ends first.
func (p *InferencePool) Submit(ctx context.Context, job func(Model)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.wg.Add(1)
	select {
	case p.jobQueue <- job:
		p.totalJobs.Add(1)
		return true
	case <-ctx.Done():
		p.wg.Done()
		return false
	}
}

// Predict runs one forward pass on whichever replica is free.
func (p *InferencePool) Predict(ctx context.Context, t imaging.Tensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type outcome struct {
		probs []float64
		err   error
	}
	done := make(chan outcome, 1)

	ok := p.Submit(ctx, func(m Model) {
		probs, err := m.Predict(t)
		done <- outcome{probs, err}
	})
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrPoolClosed
	}

	select {
	case out := <-done:
		return out.probs, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until every submitted job has run.
func (p *InferencePool) Wait() {
	p.wg.Wait()
}

// GetStats returns the current counters.
func (p *InferencePool) GetStats() PoolStats {
	return PoolStats{
		Workers:       len(p.replicas),
		TotalJobs:     p.totalJobs.Load(),
		CompletedJobs: p.completedJobs.Load(),
		ActiveWorkers: p.activeWorkers.Load(),
	}
}

// Close drains the queue, stops the workers and releases the replicas.
func (p *InferencePool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	// Workers that were never started still have to release their replicas.
	p.Start()
	p.workers.Wait()

	var errs []error
	for _, m := range p.replicas {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
