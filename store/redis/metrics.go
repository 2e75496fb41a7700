package redis

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/queueworks/governor/metrics"
)

// Push mirrors a captured sample to Redis. Samples are msgpack-encoded
// into a capped List, newest first, so dashboards on other hosts can
// read recent history without talking to the capturing process.
func (s *Store) Push(ctx context.Context, sample metrics.Sample) error {
	raw, err := msgpack.Marshal(sample)
	if err != nil {
		return fmt.Errorf("governor/redis: marshal sample: %w", err)
	}

	key := metricsKey(sample.Queue)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(s.mirrorDepth)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("governor/redis: push sample: %w", err)
	}
	return nil
}

// RecentSamples returns up to n mirrored samples for a queue, newest
// first.
func (s *Store) RecentSamples(ctx context.Context, queueName string, n int) ([]metrics.Sample, error) {
	raws, err := s.client.LRange(ctx, metricsKey(queueName), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("governor/redis: read samples: %w", err)
	}

	samples := make([]metrics.Sample, 0, len(raws))
	for _, raw := range raws {
		var sample metrics.Sample
		if err := msgpack.Unmarshal([]byte(raw), &sample); err != nil {
			return nil, fmt.Errorf("governor/redis: unmarshal sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
