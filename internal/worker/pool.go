package worker

import (
	"context"
	"sort"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// indexed pairs a job with its submission position so results can be reordered
type indexed struct {
	seq int
	job Job
}

type indexedResult struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers.
// Cancelling the parent context stops workers; jobs observe the same context.
type Pool struct {
	workers    int
	jobQueue   chan indexed
	results    chan indexedResult
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int
	mu         sync.Mutex
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexed, workers*2),
		results:    make(chan indexedResult, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case item, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := item.job.Execute(p.ctx)
			select {
			case p.results <- indexedResult{seq: item.seq, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false if the pool was shut down first.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	seq := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexed{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for all jobs and returns results in submission order.
// Results of jobs dropped by cancellation are missing.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var collected []indexedResult
	for r := range p.results {
		collected = append(collected, r)
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].seq < collected[j].seq })

	results := make([]Result, len(collected))
	for i, r := range collected {
		results[i] = r.result
	}
	return results
}

// Shutdown cancels in-flight jobs and stops the workers
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
