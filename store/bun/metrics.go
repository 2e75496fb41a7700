package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/queueworks/governor/metrics"
)

// Push archives a captured metrics sample. Implements metrics.Mirror,
// so the archive can be wired directly into the metrics store for
// durable history.
func (s *Store) Push(ctx context.Context, sample metrics.Sample) error {
	m := toSampleModel(sample)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("governor/bun: push sample: %w", err)
	}
	return nil
}

// SampleHistory returns archived samples for a queue captured at or
// after since, oldest first.
func (s *Store) SampleHistory(ctx context.Context, queueName string, since time.Time) ([]metrics.Sample, error) {
	var models []sampleModel
	err := s.db.NewSelect().Model(&models).
		Where("queue = ?", queueName).
		Where("ts >= ?", since).
		Order("ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("governor/bun: sample history: %w", err)
	}

	samples := make([]metrics.Sample, 0, len(models))
	for i := range models {
		samples = append(samples, fromSampleModel(&models[i]))
	}
	return samples, nil
}

// PruneSamples deletes archived samples older than before. Returns the
// number of rows removed.
func (s *Store) PruneSamples(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		TableExpr("governor_metric_samples").
		Where("ts < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("governor/bun: prune samples: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}
