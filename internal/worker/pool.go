package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit once the pool stops accepting jobs
var ErrPoolClosed = errors.New("worker pool closed")

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool manages a fixed set of workers executing jobs concurrently.
// Results are returned in submission order.
type Pool struct {
	workers    int
	jobQueue   chan task
	results    chan indexedResult
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu        sync.Mutex
	closed    bool
	submitted int

	collected map[int]Result
	collectWG sync.WaitGroup
	closeOnce sync.Once
	ordered   []Result
}

// NewPool creates a worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan task, workers*2),
		results:    make(chan indexedResult, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
		collected:  make(map[int]Result),
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go p.collect()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker executes queued jobs until the queue closes. Jobs dequeued after
// cancellation are skipped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for t := range p.jobQueue {
		if p.ctx.Err() != nil {
			continue
		}
		p.results <- indexedResult{index: t.index, result: t.job.Execute(p.ctx)}
	}
}

func (p *Pool) collect() {
	defer p.collectWG.Done()
	for r := range p.results {
		p.collected[r.index] = r.result
	}
}

// Submit queues a job. It blocks while the queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.ctx.Err() != nil {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.jobQueue <- task{index: p.submitted, job: job}:
		p.submitted++
		return nil
	}
}

// Wait stops accepting jobs, waits for the queued ones and returns one slot
// per submitted job in submission order. A slot is nil when its job was
// skipped because the pool was cancelled.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()

		p.wg.Wait()
		close(p.results)
		p.collectWG.Wait()

		p.ordered = make([]Result, p.submitted)
		for i, r := range p.collected {
			p.ordered[i] = r
		}
		p.cancelFunc()
	})
	return p.ordered
}

// Shutdown cancels running jobs, drops queued ones and waits for the workers
func (p *Pool) Shutdown() []Result {
	p.cancelFunc()
	return p.Wait()
}
