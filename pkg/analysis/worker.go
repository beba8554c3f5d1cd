package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/graph"
)

// IdlePoll is how long an idle worker sleeps before checking its queue again
// when no wake-up arrives.
const IdlePoll = 50 * time.Millisecond

// SizeWorker computes hierarchy sizes on a dedicated goroutine.
type SizeWorker struct {
	logger *log.Logger

	mu     sync.Mutex
	stack  []*graph.Node
	busy   bool
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSizeWorker creates a stopped worker.
func NewSizeWorker(logger *log.Logger) *SizeWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &SizeWorker{logger: logger, wake: make(chan struct{}, 1)}
}

// Start launches the worker goroutine. Starting a running worker is a no-op.
func (w *SizeWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop cancels the worker, waits for it to exit and clears pending requests.
// No result is written after Stop returns.
func (w *SizeWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.stack = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	w.mu.Lock()
	w.stack = nil
	w.busy = false
	w.mu.Unlock()
}

// Restart stops the current worker and starts a fresh one.
func (w *SizeWorker) Restart() {
	w.Stop()
	w.Start()
}

// Push queues nodes for computation. The most recently pushed node is
// computed first. Requests made while the worker is stopped are dropped.
func (w *SizeWorker) Push(nodes ...*graph.Node) {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return
	}
	w.stack = append(w.stack, nodes...)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued requests.
func (w *SizeWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stack)
}

// Wait blocks until the queue is empty and no computation is running, or
// until the worker is stopped.
func (w *SizeWorker) Wait(ctx context.Context) error {
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		w.mu.Lock()
		idle := w.cancel == nil || (len(w.stack) == 0 && !w.busy)
		w.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (w *SizeWorker) pop() (*graph.Node, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.stack) == 0 {
		return nil, false
	}
	n := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.busy = true
	return n, true
}

func (w *SizeWorker) idle() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *SizeWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		n, ok := w.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			case <-time.After(IdlePoll):
			}
			continue
		}

		size, complete := TreeSize(ctx, n)
		if !complete || ctx.Err() != nil {
			w.idle()
			return
		}
		n.SetHierarchySize(size)
		w.idle()
		w.logger.Debug("hierarchy size", "node", n.Key, "size", size)
	}
}
