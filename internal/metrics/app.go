// Package metrics names and emits the service's telemetry. Every function is
// a no-op until observability.InitMetrics installs a telemetry system.
package metrics

import (
	"time"

	"github.com/namelens/entryguard/internal/observability"
)

// Validation metrics.
const (
	ChecksTotal       = "checks_total"
	RunsTotal         = "runs_total"
	RunDuration       = "run_duration_ms"
	CacheLookupsTotal = "cache_lookups_total"
	CachePurged       = "cache_purged_entries"
)

// Service lifecycle metrics.
const (
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
	ServerUptime        = "app_server_uptime_seconds"
)

func counter(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, labels)
	}
}

func histogram(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

// RecordCheck counts one check by checker name and outcome
// (passed, skipped, failed, review, fault).
func RecordCheck(check, outcome string) {
	counter(ChecksTotal, map[string]string{"check": check, "outcome": outcome})
}

// RecordRun counts a finished run and its duration; status is ok, fault or fatal.
func RecordRun(status string, duration time.Duration) {
	labels := map[string]string{"status": status}
	counter(RunsTotal, labels)
	histogram(RunDuration, duration, labels)
}

// RecordCacheLookup counts response cache hits and misses per check type.
func RecordCacheLookup(checkType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	counter(CacheLookupsTotal, map[string]string{"check_type": checkType, "result": result})
}

// SetCachePurged records how many cached responses the last purge removed.
func SetCachePurged(count int64) {
	gauge(CachePurged, float64(count), nil)
}

// RecordHealthCheck counts one health checker execution and its latency.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	counter(HealthCheckTotal, map[string]string{"check": checkName, "status": status})
	histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	gauge(ServerStartTime, float64(timestamp), nil)
}

// SetServerUptime records the uptime in seconds.
func SetServerUptime(seconds int64) {
	gauge(ServerUptime, float64(seconds), nil)
}
