// Package diagnostics exposes process counters as a flat numeric snapshot,
// the shape original_source/diagnostics/reports/prometheus_monitoring.rs
// renders into Prometheus text format. This package stops one layer short
// of that: it owns the counters and their snapshot, not an HTTP listener or
// text encoder (SPEC_FULL §12 "no HTTP exposition server in scope").
package diagnostics

import "sync/atomic"

// Reporter accumulates the small set of counters spec.md calls out for
// observability: committed transactions, WAL bytes written, and the plan
// cache's hit/miss split. All fields are safe for concurrent use; every
// increment is a single atomic operation, never a locked critical section.
type Reporter struct {
	committedTransactions atomic.Int64
	walBytesWritten       atomic.Int64
	planCacheHits         atomic.Int64
	planCacheMisses       atomic.Int64
}

// NewReporter returns a Reporter with every counter at zero.
func NewReporter() *Reporter { return &Reporter{} }

// RecordCommit increments the committed-transaction counter by one.
func (r *Reporter) RecordCommit() { r.committedTransactions.Add(1) }

// RecordWALBytes adds n to the bytes-written-to-WAL counter.
func (r *Reporter) RecordWALBytes(n int64) { r.walBytesWritten.Add(n) }

// RecordPlanCacheHit and RecordPlanCacheMiss track query.PlanCache's
// effectiveness, the single most actionable number for diagnosing a slow
// workload dominated by re-planning.
func (r *Reporter) RecordPlanCacheHit()  { r.planCacheHits.Add(1) }
func (r *Reporter) RecordPlanCacheMiss() { r.planCacheMisses.Add(1) }

// Snapshot returns every counter's current value keyed by name, the shape a
// caller renders into whatever wire format it needs (Prometheus text,
// JSON, a log line) without this package knowing about any of them.
func (r *Reporter) Snapshot() map[string]float64 {
	hits := r.planCacheHits.Load()
	misses := r.planCacheMisses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return map[string]float64{
		"committed_transactions_total": float64(r.committedTransactions.Load()),
		"wal_bytes_written_total":      float64(r.walBytesWritten.Load()),
		"plan_cache_hits_total":        float64(hits),
		"plan_cache_misses_total":      float64(misses),
		"plan_cache_hit_rate":          hitRate,
	}
}
