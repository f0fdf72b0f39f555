package models

import "time"

// SystemMetrics is a lightweight snapshot of pipeline health for API
// consumption; the full series lives in Prometheus.
type SystemMetrics struct {
	JobsProcessed            uint64    `json:"jobs_processed"`
	JobsSucceeded            uint64    `json:"jobs_succeeded"`
	JobsFailed               uint64    `json:"jobs_failed"`
	LedgerWrites             uint64    `json:"ledger_writes"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	AverageJobDurationMs     float64   `json:"avg_job_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
