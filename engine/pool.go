package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/utils/logger"
	"github.com/datazip-inc/rwcdc/utils/safego"
)

// job is one submitted execution. abort records an execution that never
// reached the end of fn, either cancelled while queued or panicked.
type job struct {
	taskID int64
	ctx    context.Context
	fn     func(ctx context.Context)
	abort  func(err error)
}

// WorkerPool runs task executions in the background with bounded concurrency.
// A single dispatcher starts queued jobs in submission order. Every queued or
// running task has a cancel func registered under its id.
type WorkerPool struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.Mutex
	queue   []job
	wakeup  chan struct{}
	cancels map[int64]context.CancelFunc
}

func NewWorkerPool(maxConcurrent int) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = constants.DefaultMaxConcurrentTasks
	}
	p := &WorkerPool{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		wakeup:  make(chan struct{}, 1),
		cancels: make(map[int64]context.CancelFunc),
	}
	safego.Run(p.dispatch)
	return p
}

// Submit queues fn for taskID and returns immediately. abort is called instead
// of fn when the job is cancelled before it starts, and after fn when it panics.
func (p *WorkerPool) Submit(taskID int64, fn func(ctx context.Context), abort func(err error)) {
	ctx, cancel := context.WithCancel(context.Background())

	p.wg.Add(1)
	p.mu.Lock()
	p.cancels[taskID] = cancel
	p.queue = append(p.queue, job{taskID: taskID, ctx: ctx, fn: fn, abort: abort})
	p.mu.Unlock()

	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

func (p *WorkerPool) next() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue = p.queue[1:]
	return j, true
}

// dispatch runs for the life of the pool, starting one job at a time once a slot is free
func (p *WorkerPool) dispatch() {
	for range p.wakeup {
		for {
			j, ok := p.next()
			if !ok {
				break
			}
			p.start(j)
		}
	}
}

func (p *WorkerPool) start(j job) {
	err := j.ctx.Err()
	if err == nil {
		err = p.sem.Acquire(j.ctx, 1)
		// the acquire may win a race against a cancel that already happened
		if err == nil && j.ctx.Err() != nil {
			p.sem.Release(1)
			err = j.ctx.Err()
		}
	}
	if err != nil {
		logger.Warnf("task %d cancelled before it started", j.taskID)
		p.release(j.taskID)
		j.abort(fmt.Errorf("task %d cancelled before it started: %s", j.taskID, err))
		p.wg.Done()
		return
	}

	safego.RunWithHandler(func() {
		defer p.sem.Release(1)
		defer p.release(j.taskID)
		j.fn(j.ctx)
		p.wg.Done()
	}, func(value interface{}) {
		j.abort(fmt.Errorf("task %d panicked: %v", j.taskID, value))
		p.wg.Done()
	})
}

func (p *WorkerPool) release(taskID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[taskID]; ok {
		cancel()
		delete(p.cancels, taskID)
	}
}

// Cancel signals the execution of taskID; false when nothing is queued or running for it
func (p *WorkerPool) Cancel(taskID int64) bool {
	p.mu.Lock()
	cancel, ok := p.cancels[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running returns how many executions are queued or in flight
func (p *WorkerPool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

// Wait blocks until every submitted execution has returned
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Shutdown cancels everything still queued or running and waits for it to return
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}
