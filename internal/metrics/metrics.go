// Package metrics exposes Prometheus counters for audit runs. The CLI can
// dump them to a node_exporter textfile with WriteTextfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetches counts fetch capability invocations by result
	SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_source_fetch_total",
		Help: "Source fetches by result",
	}, []string{"result"})

	// SourceFetchDuration tracks fetch latency
	SourceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veracity_source_fetch_duration_seconds",
		Help:    "Source fetch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// CacheHits counts source content served without fetching, by layer
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_source_cache_hits_total",
		Help: "Source cache hits by layer (run, store)",
	}, []string{"layer"})

	// ClaimVerdicts counts terminal and pending claim verdicts by status
	ClaimVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_claim_verdicts_total",
		Help: "Claim verdicts by status",
	}, []string{"status"})

	// RelationVerdicts counts relationship outcomes by audit status
	RelationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_relation_verdicts_total",
		Help: "Relationship verdicts by audit status",
	}, []string{"status"})

	// JudgeCalls counts judge invocations by provider and result
	JudgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_judge_calls_total",
		Help: "Judge invocations by provider and result",
	}, []string{"provider", "result"})

	// AuditRuns counts completed audits by outcome
	AuditRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_audit_runs_total",
		Help: "Audit runs by outcome",
	}, []string{"outcome"})
)

// WriteTextfile writes the default registry in text exposition format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
