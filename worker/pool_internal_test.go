package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/ext"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/queue"
)

// A worker that hit its recycle budget must be flagged in the same
// critical section that marks it idle, or a concurrent Assign can hand
// it a job its exiting goroutine will never pick up.
func TestAfterJobFlagsWorkerBeforeRecycle(t *testing.T) {
	p := NewPool(
		queue.Config{Name: "email", Tier: queue.TierHigh, MinWorkers: 1, MaxWorkers: 2, MaxJobsPerWorker: 1},
		nil,
		ext.NewRegistry(slog.Default()),
		slog.Default(),
	)
	ws := &workerState{
		id:        id.NewWorkerID(),
		startedAt: time.Now().UTC(),
		state:     StateBusy,
		jobCh:     make(chan *job.Job, 1),
		stopCh:    make(chan struct{}),
	}
	p.workers[ws.id.String()] = ws

	reason := p.afterJob(ws, Result{})
	if reason != ReasonJobCount {
		t.Fatalf("afterJob reason = %q, want %q", reason, ReasonJobCount)
	}

	p.mu.Lock()
	pending := ws.pendingRecycle
	p.mu.Unlock()
	if pending != ReasonJobCount {
		t.Fatalf("pendingRecycle = %q, want %q", pending, ReasonJobCount)
	}

	// The worker is idle but doomed; Assign must not choose it.
	_, err := p.Assign(context.Background(), &job.Job{ID: id.NewJobID(), Name: "send-email", Queue: "email"})
	if !errors.Is(err, governor.ErrNoIdleWorker) {
		t.Fatalf("Assign error = %v, want ErrNoIdleWorker", err)
	}
	if got := len(ws.jobCh); got != 0 {
		t.Fatalf("job sat in the doomed worker's channel, len = %d", got)
	}
}
