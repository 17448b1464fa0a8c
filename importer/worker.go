package importer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStopped is returned for sources submitted after worker was stopped.
var ErrStopped = errors.New("import worker stopped")

// Result of a queued import.
type Result struct {
	Source  string
	Summary *Summary
	Err     error
}

type job struct {
	src    string
	result chan Result
}

// Worker executes import sessions one at a time on a single goroutine so
// submitters never wait for the import itself.
type Worker struct {
	imp  *Importer
	jobs chan job
	log  *zap.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Start launches worker. It runs until Stop is called or ctx is done;
// queued sources left when ctx is done fail with context error.
func (imp *Importer) Start(ctx context.Context) *Worker {
	w := &Worker{imp: imp, jobs: make(chan job, 16), log: imp.log.Named("worker")}
	w.wg.Add(1)
	go w.loop(ctx)
	return w
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for j := range w.jobs {
		if err := ctx.Err(); err != nil {
			j.result <- Result{Source: j.src, Err: err}
			continue
		}
		w.log.Debug("Import started", zap.String("source", j.src))
		sum, err := w.imp.Run(ctx, j.src)
		j.result <- Result{Source: j.src, Summary: sum, Err: err}
	}
}

// Submit queues source for import. Returned channel receives exactly one
// result.
func (w *Worker) Submit(src string) <-chan Result {
	res := make(chan Result, 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		res <- Result{Source: src, Err: ErrStopped}
		return res
	}
	w.jobs <- job{src: src, result: res}
	return res
}

// Stop waits for queued imports to finish and stops worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
