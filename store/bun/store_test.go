//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	governor "github.com/queueworks/governor"
	"github.com/queueworks/governor/alert"
	"github.com/queueworks/governor/dlq"
	"github.com/queueworks/governor/id"
	"github.com/queueworks/governor/job"
	"github.com/queueworks/governor/metrics"
	bunstore "github.com/queueworks/governor/store/bun"
)

// setupTestStore creates a Postgres container and returns a connected
// archive store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("governor_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))
	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	return store
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestAlertStore_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := &alert.Alert{
		ID:        id.NewAlertID(),
		Queue:     "email",
		Type:      alert.TypeQueueDepth,
		Severity:  alert.SeverityWarning,
		Value:     150,
		Threshold: 100,
		RaisedAt:  now,
		UpdatedAt: now,
	}
	if err := s.SaveAlert(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}

	active, err := s.ActiveAlert(ctx, "email", alert.TypeQueueDepth)
	if err != nil {
		t.Fatalf("active alert: %v", err)
	}
	if active.ID.String() != a.ID.String() {
		t.Fatalf("expected alert %s, got %s", a.ID, active.ID)
	}

	if _, err := s.ActiveAlert(ctx, "email", alert.TypeErrorRate); !errors.Is(err, governor.ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound, got: %v", err)
	}

	// Escalation updates the existing row.
	a.Value = 300
	a.Severity = alert.SeverityCritical
	a.UpdatedAt = now.Add(time.Minute)
	if err := s.SaveAlert(ctx, a); err != nil {
		t.Fatalf("save escalation: %v", err)
	}
	got, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != 300 || got.Severity != alert.SeverityCritical {
		t.Fatalf("escalation not persisted: %+v", got)
	}

	// Acknowledging removes the alert from the active set.
	ackedAt := now.Add(2 * time.Minute)
	a.Acknowledged = true
	a.AcknowledgedBy = "ops"
	a.AcknowledgedAt = &ackedAt
	if err := s.SaveAlert(ctx, a); err != nil {
		t.Fatalf("save ack: %v", err)
	}
	if _, err := s.ActiveAlert(ctx, "email", alert.TypeQueueDepth); !errors.Is(err, governor.ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound after ack, got: %v", err)
	}

	all, err := s.ListAlerts(ctx, now.Add(-time.Hour))
	if err != nil || len(all) != 1 {
		t.Fatalf("list alerts = (%v, %v), want 1", all, err)
	}
	activeList, err := s.ListActiveAlerts(ctx)
	if err != nil || len(activeList) != 0 {
		t.Fatalf("list active = (%v, %v), want empty", activeList, err)
	}
}

func TestDLQStore_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	e := &dlq.Entry{
		ID:        id.NewDLQID(),
		JobID:     id.NewJobID(),
		JobName:   "send-email",
		Queue:     "email",
		Payload:   []byte(`{"to":"a@example.com"}`),
		Reason:    job.ReasonHandlerError,
		Error:     "smtp refused",
		FailedAt:  now,
		CreatedAt: now,
	}
	if err := s.PushDLQ(ctx, e); err != nil {
		t.Fatalf("push: %v", err)
	}

	count, err := s.CountDLQ(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count = (%d, %v), want 1", count, err)
	}

	list, err := s.ListDLQ(ctx, dlq.ListOpts{Queue: "email"})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = (%v, %v), want 1", list, err)
	}
	if string(list[0].Payload) != `{"to":"a@example.com"}` {
		t.Fatalf("payload not preserved: %s", list[0].Payload)
	}

	if err := s.ReplayDLQ(ctx, e.ID); err != nil {
		t.Fatalf("replay: %v", err)
	}
	got, err := s.GetDLQ(ctx, e.ID)
	if err != nil || got.ReplayedAt == nil {
		t.Fatalf("replay not persisted: (%+v, %v)", got, err)
	}
	if err := s.ReplayDLQ(ctx, id.NewDLQID()); !errors.Is(err, governor.ErrDLQNotFound) {
		t.Fatalf("expected ErrDLQNotFound, got: %v", err)
	}

	old := &dlq.Entry{
		ID:        id.NewDLQID(),
		JobID:     id.NewJobID(),
		JobName:   "send-email",
		Queue:     "email",
		Reason:    job.ReasonHardTimeout,
		FailedAt:  now.Add(-48 * time.Hour),
		CreatedAt: now.Add(-48 * time.Hour),
	}
	if err := s.PushDLQ(ctx, old); err != nil {
		t.Fatalf("push old: %v", err)
	}
	removed, err := s.PurgeDLQ(ctx, now.Add(-24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("purge = (%d, %v), want 1", removed, err)
	}
}

func TestMetricsArchive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		sample := metrics.Sample{
			Queue:         "email",
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Waiting:       10 * i,
			Active:        2,
			JobsPerMinute: 12.5,
			ErrorRate:     0.05,
			P95:           800 * time.Millisecond,
			MemoryMB:      256,
		}
		if err := s.Push(ctx, sample); err != nil {
			t.Fatalf("push sample: %v", err)
		}
	}

	history, err := s.SampleHistory(ctx, "email", base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Waiting != 10 || history[1].Waiting != 20 {
		t.Fatalf("history order = [%d %d], want [10 20]", history[0].Waiting, history[1].Waiting)
	}
	if history[0].P95 != 800*time.Millisecond {
		t.Fatalf("P95 not preserved: %v", history[0].P95)
	}

	pruned, err := s.PruneSamples(ctx, base.Add(90*time.Second))
	if err != nil || pruned != 2 {
		t.Fatalf("prune = (%d, %v), want 2", pruned, err)
	}
}
