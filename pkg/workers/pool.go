// Package workers runs independent jobs over a bounded set of goroutines and merges the
// results back into submission order.
package workers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MaxWorkers bounds the pool size regardless of what is requested or detected
const MaxWorkers = 64

// Func processes one job
type Func[J, R any] func(ctx context.Context, job J) (R, error)

// Pool distributes jobs to workers and collects their results
type Pool[J, R any] struct {
	workers      int
	fn           Func[J, R]
	ctx          context.Context
	cancel       context.CancelFunc
	jobQueue     chan poolJob[J]    // Jobs waiting for a worker
	resultQueue  chan poolResult[R] // Finished jobs waiting for the collector
	workerWg     sync.WaitGroup
	resultWg     sync.WaitGroup
	firstErr     error
	errOnce      sync.Once
	results      []poolResult[R]
	resultsMutex sync.Mutex
	submitted    int
	onDone       func()
}

type poolJob[J any] struct {
	job   J
	index int // Submission index for ordering
}

type poolResult[R any] struct {
	value R
	index int
	err   error
}

// NewPool creates a pool; workers <= 0 selects the detected worker count
func NewPool[J, R any](ctx context.Context, workers int, fn Func[J, R]) *Pool[J, R] {
	workers = Resolve(workers)
	ctx, cancel := context.WithCancel(ctx)

	return &Pool[J, R]{
		workers:     workers,
		fn:          fn,
		ctx:         ctx,
		cancel:      cancel,
		jobQueue:    make(chan poolJob[J], workers*2),
		resultQueue: make(chan poolResult[R], workers*2),
	}
}

// OnDone registers a callback invoked by the collector after every finished job
func (p *Pool[J, R]) OnDone(fn func()) {
	p.onDone = fn
}

// Start launches the workers and the result collector
func (p *Pool[J, R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}

	p.resultWg.Add(1)
	go p.collector()
}

func (p *Pool[J, R]) worker(id int) {
	defer p.workerWg.Done()

	for job := range p.jobQueue {
		result := poolResult[R]{index: job.index}

		// Skip the work once the batch has failed, but keep draining the queue
		if err := p.ctx.Err(); err != nil {
			result.err = err
		} else {
			value, err := p.fn(p.ctx, job.job)
			if err != nil {
				err = fmt.Errorf("worker %d failed on job %d: %w", id, job.index, err)
			}
			result.value, result.err = value, err
		}

		p.resultQueue <- result
	}
}

// collector drains every result so that workers never block
func (p *Pool[J, R]) collector() {
	defer p.resultWg.Done()

	for result := range p.resultQueue {
		if result.err != nil {
			p.fail(result.err)
			continue
		}

		p.resultsMutex.Lock()
		p.results = append(p.results, result)
		p.resultsMutex.Unlock()

		if p.onDone != nil {
			p.onDone()
		}
	}
}

func (p *Pool[J, R]) fail(err error) {
	p.errOnce.Do(func() {
		p.firstErr = err
		p.cancel()
	})
}

// Submit queues a job. It returns the context error once the batch is cancelled or failed.
func (p *Pool[J, R]) Submit(job J) error {
	select {
	case p.jobQueue <- poolJob[J]{job: job, index: p.submitted}:
		p.submitted++
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Finalize waits for all submitted jobs and returns their results in submission order.
// The first job error fails the whole batch.
func (p *Pool[J, R]) Finalize() ([]R, error) {
	close(p.jobQueue)
	p.workerWg.Wait()

	close(p.resultQueue)
	p.resultWg.Wait()
	defer p.cancel()

	if p.firstErr != nil {
		return nil, p.firstErr
	}

	sort.Slice(p.results, func(i, j int) bool {
		return p.results[i].index < p.results[j].index
	})

	out := make([]R, len(p.results))
	for i, r := range p.results {
		out[i] = r.value
	}
	return out, nil
}

// Workers returns the number of goroutines serving the pool
func (p *Pool[J, R]) Workers() int {
	return p.workers
}

// Map applies fn to every item in parallel and returns the results in item order
func Map[J, R any](ctx context.Context, workers int, items []J, fn Func[J, R], onDone func()) ([]R, error) {
	pool := NewPool(ctx, workers, fn)
	pool.OnDone(onDone)
	pool.Start()

	var submitErr error
	for _, item := range items {
		if err := pool.Submit(item); err != nil {
			submitErr = err
			break
		}
	}

	results, err := pool.Finalize()
	if err != nil {
		return nil, err
	}
	if submitErr != nil {
		return nil, submitErr
	}
	return results, nil
}

// Resolve turns a requested worker count into the effective one
func Resolve(requested int) int {
	if requested <= 0 {
		requested = detectWorkers()
	}
	if requested < 1 {
		requested = 1
	}
	if requested > MaxWorkers {
		requested = MaxWorkers
	}
	return requested
}
