package orchestrator

import (
	"context"

	"github.com/mkraev/switchboard/internal/executor"
)

// execOutcome is the settled result of a pooled execution.
type execOutcome struct {
	result executor.Result
	err    error
}

// execTask pairs an execution request with its result future.
type execTask struct {
	ctx  context.Context
	exec executor.Executor
	req  executor.Request
	done chan execOutcome
}

// workerPool runs agent executions off the request-accepting goroutines so
// a long model/sandbox call never blocks status queries or uploads. There
// is no cancellation of an in-flight execution: once picked up, a task
// runs to completion or failure.
type workerPool struct {
	tasks chan execTask
}

// newWorkerPool starts size workers draining a queue of queueLen tasks.
// The pool stops when ctx is cancelled.
func newWorkerPool(ctx context.Context, size, queueLen int) *workerPool {
	if size <= 0 {
		size = 4
	}
	if queueLen <= 0 {
		queueLen = 16
	}
	p := &workerPool{tasks: make(chan execTask, queueLen)}
	for i := 0; i < size; i++ {
		go p.worker(ctx)
	}
	return p
}

func (p *workerPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			res, err := task.exec.Execute(task.ctx, task.req)
			task.done <- execOutcome{result: res, err: err}
		}
	}
}

// submit enqueues an execution and returns a future for its outcome. The
// channel is buffered so a worker never blocks on delivery.
func (p *workerPool) submit(ctx context.Context, exec executor.Executor, req executor.Request) (<-chan execOutcome, error) {
	done := make(chan execOutcome, 1)
	select {
	case p.tasks <- execTask{ctx: ctx, exec: exec, req: req, done: done}:
		return done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
