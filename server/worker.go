package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

// job is a unit of work to be executed on the worker goroutine.
type job struct {
	fn   func(*compiler.Compiler) any
	done chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Worker runs compile jobs one at a time on a dedicated goroutine. The
// LSP and the RPC services share one worker, so a burst of edits cannot
// start more than one compile.
type Worker struct {
	compiler *compiler.Compiler
	requests chan job
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(c *compiler.Compiler) *Worker {
	if c == nil {
		c = compiler.NewCompiler()
	}
	w := &Worker{
		compiler: c,
		requests: make(chan job, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func(*compiler.Compiler) any) (result jobResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker job panicked: %v", r)
			result.err = fmt.Errorf("%v", r)
		}
	}()
	result.value = fn(w.compiler)
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until
// it completes. A panic inside fn is returned as an error.
func (w *Worker) Do(fn func(*compiler.Compiler) any) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	req := job{fn: fn, done: make(chan jobResult, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
