package deps

import (
	"context"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/observability"
)

// Task is a resumable unit of update work.
//
// Step performs one batch and returns at a batch boundary. Results are staged
// until Commit; a task that is never committed leaves its cache unchanged.
type Task interface {
	// Step advances the task. done is true once no work remains.
	Step(ctx context.Context) (done bool, err error)

	// Commit publishes staged results. Only valid after Step reported done.
	Commit()

	// Stats reports progress so far.
	Stats() observability.UpdateStats
}

// FuncTask adapts a commit function into a task with no steps.
type FuncTask struct {
	OnCommit func()
	Summary  observability.UpdateStats
}

func (t *FuncTask) Step(context.Context) (bool, error) { return true, nil }

func (t *FuncTask) Commit() {
	if t.OnCommit != nil {
		t.OnCommit()
	}
}

func (t *FuncTask) Stats() observability.UpdateStats { return t.Summary }

// Skipped returns a task that does nothing except run commit, reporting the
// update as skipped.
func Skipped(commit func()) Task {
	return &FuncTask{OnCommit: commit, Summary: observability.UpdateStats{Skipped: true}}
}

// Run drives tasks until all are done, interleaving one step per unfinished
// task. Cancellation is observed between steps and reported as an ABORTED
// error. Run never commits.
func Run(ctx context.Context, tasks ...Task) error {
	pending := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			pending = append(pending, t)
		}
	}
	for len(pending) > 0 {
		next := pending[:0]
		for _, t := range pending {
			if err := ctx.Err(); err != nil {
				return errors.Aborted(err, "update interrupted")
			}
			done, err := t.Step(ctx)
			if err != nil {
				if errors.IsAborted(err) {
					return errors.Aborted(err, "update interrupted")
				}
				return err
			}
			if !done {
				next = append(next, t)
			}
		}
		pending = next
	}
	return nil
}

// CommitAll commits every task in order.
func CommitAll(tasks ...Task) {
	for _, t := range tasks {
		if t != nil {
			t.Commit()
		}
	}
}
