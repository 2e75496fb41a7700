package memmon_test

import (
	"sync"
	"testing"
	"time"

	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/memmon"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name           string
		used, soft, hard float64
		want           memmon.Status
	}{
		{"under soft", 100, 512, 1024, memmon.WithinLimits},
		{"at soft", 512, 512, 1024, memmon.ExceedsWarning},
		{"between", 900, 512, 1024, memmon.ExceedsWarning},
		{"at hard", 1024, 512, 1024, memmon.ExceedsCritical},
		{"way over hard", 1850, 512, 1024, memmon.ExceedsCritical},
		{"limits disabled", 9999, 0, 0, memmon.WithinLimits},
		{"only hard set", 600, 0, 512, memmon.ExceedsCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memmon.Derive(tt.used, tt.soft, tt.hard); got != tt.want {
				t.Errorf("Derive(%v, %v, %v) = %v, want %v", tt.used, tt.soft, tt.hard, got, tt.want)
			}
		})
	}
}

type breachRecord struct {
	workerID id.WorkerID
	queue    string
	status   memmon.Status
	usedMB   float64
}

type breachRecorder struct {
	mu       sync.Mutex
	breaches []breachRecord
}

func (b *breachRecorder) record(workerID id.WorkerID, queue string, status memmon.Status, usedMB float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breaches = append(b.breaches, breachRecord{workerID, queue, status, usedMB})
}

func (b *breachRecorder) all() []breachRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]breachRecord(nil), b.breaches...)
}

func limits(soft, hard float64) memmon.LimitResolver {
	return func(string) (float64, float64) { return soft, hard }
}

func TestObserveFlagsBreach(t *testing.T) {
	rec := &breachRecorder{}
	m := memmon.NewMonitor(memmon.Config{}, limits(512, 1024),
		memmon.WithBreachFunc(rec.record))

	wid := id.NewWorkerID()

	if got := m.Observe(wid, "email", 100); got != memmon.WithinLimits {
		t.Errorf("expected within limits, got %v", got)
	}
	if len(rec.all()) != 0 {
		t.Fatal("no breach expected below soft limit")
	}

	// The 1850MB-vs-1024MB hard-limit scenario.
	if got := m.Observe(wid, "email", 1850); got != memmon.ExceedsCritical {
		t.Errorf("expected critical, got %v", got)
	}

	breaches := rec.all()
	if len(breaches) != 1 {
		t.Fatalf("expected 1 breach, got %d", len(breaches))
	}
	if breaches[0].status != memmon.ExceedsCritical || breaches[0].usedMB != 1850 {
		t.Errorf("unexpected breach: %+v", breaches[0])
	}
	if breaches[0].queue != "email" {
		t.Errorf("breach should carry the queue, got %q", breaches[0].queue)
	}
}

func TestJobCountTrigger(t *testing.T) {
	rec := &breachRecorder{}
	m := memmon.NewMonitor(
		memmon.Config{EveryJobs: 3, Interval: time.Hour},
		limits(512, 1024),
		memmon.WithBreachFunc(rec.record),
	)

	// A worker sitting above its soft limit is re-flagged by the
	// job-count-triggered sample even without a new Observe.
	wid := id.NewWorkerID()
	m.Observe(wid, "email", 600) // one breach from Observe itself

	m.JobCompleted()
	m.JobCompleted()
	if len(rec.all()) != 1 {
		t.Fatalf("sample should not run before the job threshold, got %d breaches", len(rec.all()))
	}
	m.JobCompleted() // third job triggers a sample

	if got := len(rec.all()); got != 2 {
		t.Errorf("expected re-flag on job-count sample, got %d breaches", got)
	}
}

func TestForget(t *testing.T) {
	m := memmon.NewMonitor(memmon.Config{}, limits(0, 0))
	wid := id.NewWorkerID()

	m.Observe(wid, "email", 256)
	if usage := m.WorkerUsage(); usage[wid.String()] != 256 {
		t.Fatalf("expected recorded usage, got %v", usage)
	}

	m.Forget(wid)
	if usage := m.WorkerUsage(); len(usage) != 0 {
		t.Errorf("expected empty usage map after Forget, got %v", usage)
	}
}

func TestReadProcessStats(t *testing.T) {
	stats := memmon.ReadProcessStats()
	if stats.HeapAllocMB <= 0 {
		t.Errorf("heap alloc should be positive, got %v", stats.HeapAllocMB)
	}
	if stats.Goroutines <= 0 {
		t.Errorf("goroutine count should be positive, got %d", stats.Goroutines)
	}
	if stats.UsedMB() <= 0 {
		t.Errorf("used memory should be positive, got %v", stats.UsedMB())
	}
}

func TestStartStop(t *testing.T) {
	m := memmon.NewMonitor(memmon.Config{Interval: 10 * time.Millisecond}, limits(0, 0))

	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Double start is a no-op.
	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("double start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := m.Stop(t.Context()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Double stop is a no-op.
	if err := m.Stop(t.Context()); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
