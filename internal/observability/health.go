package observability

import (
	"context"
	"sort"
	"time"
)

const (
	ServiceName = "gemini-voice"
	Version     = "1.0.0"
)

// HealthStatus represents the health status of the Gemini endpoints
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthCheckFunc probes a single dependency.
// It accepts plain functions to avoid import cycles with the client packages.
type HealthCheckFunc func(ctx context.Context) (bool, error)

// IsReady reports whether every dependency was healthy
func (h HealthStatus) IsReady() bool {
	return h.Status == "ready"
}

// CheckDependencies runs every check in name order and collects the results.
// Each check is bounded by timeout.
func CheckDependencies(ctx context.Context, timeout time.Duration, checks map[string]HealthCheckFunc) HealthStatus {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, name := range names {
		check := checks[name]
		if check == nil {
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		healthy, err := check(checkCtx)
		latency := time.Since(start).Milliseconds()
		cancel()

		status := "healthy"
		message := ""
		if err != nil || !healthy {
			status = "unhealthy"
			allHealthy = false
			if err != nil {
				message = err.Error()
			}
		}

		dependencies[name] = DependencyStatus{
			Status:    status,
			Message:   message,
			LatencyMs: latency,
		}
	}

	result := HealthStatus{
		Status:       "ready",
		Service:      ServiceName,
		Version:      Version,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Dependencies: dependencies,
	}
	if !allHealthy {
		result.Status = "not_ready"
	}
	return result
}
