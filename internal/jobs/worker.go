package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor runs one claim-and-dispatch pass over the queue
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls the queue on a fixed interval and hands each pass to
// the processor. One worker per process is enough: the runner fans a
// claimed batch out internally.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop
// is called. The first pass runs immediately so queued work does not
// wait out a full interval after startup.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker started with poll interval %v", w.pollInterval)

	w.process(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("job pass failed: %v", err)
	}
}

// Stop signals the worker and waits for the current pass to finish
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
