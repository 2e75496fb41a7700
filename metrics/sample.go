package metrics

import (
	"sort"
	"time"
)

// Sample is one point-in-time observation of a queue's health. Samples
// are append-only; the store owns their history.
type Sample struct {
	Queue     string    `json:"queue" msgpack:"q"`
	Timestamp time.Time `json:"timestamp" msgpack:"ts"`

	Waiting   int `json:"waiting" msgpack:"w"`
	Active    int `json:"active" msgpack:"a"`
	Delayed   int `json:"delayed" msgpack:"d"`
	Failed    int `json:"failed" msgpack:"f"`
	Completed int `json:"completed" msgpack:"c"`

	JobsPerMinute float64 `json:"jobs_per_minute" msgpack:"jpm"`
	ErrorRate     float64 `json:"error_rate" msgpack:"er"`
	TimeoutRate   float64 `json:"timeout_rate" msgpack:"tr"`

	P50 time.Duration `json:"p50" msgpack:"p50"`
	P95 time.Duration `json:"p95" msgpack:"p95"`
	P99 time.Duration `json:"p99" msgpack:"p99"`

	MemoryMB float64 `json:"memory_mb" msgpack:"mem"`
}

// Percentile returns the p-th percentile (0 < p <= 1) of durations using
// nearest-rank on a sorted copy. Returns 0 for an empty input.
func Percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(float64(len(sorted)) * p)
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
