// Package health aggregates liveness of the search backend and the embedding
// provider into one report for the health endpoint.
package health

import "context"

// Status is the aggregated health status.
type Status string

const (
	// Healthy means every checked component answered.
	Healthy Status = "ok"
	// Degraded means at least one component failed its check.
	Degraded Status = "degraded"
)

// CheckResult is one component's health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Check names as reported in the health payload.
const (
	checkBackend   = "backend"
	checkEmbedding = "embedding"
)

// Report holds the aggregate status and the per-component outcomes.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs the component health checks.
type Service struct {
	backend   BackendPinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding may be nil when no provider is configured;
// its check is then omitted from the report.
func New(backend BackendPinger, embedding EmbeddingChecker) *Service {
	return &Service{backend: backend, embedding: embedding}
}

// Check probes every configured component and aggregates the outcomes. Any
// failing component degrades the whole report.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		checkBackend: resultOf(s.backend.Ping(ctx)),
	}
	if s.embedding != nil {
		checks[checkEmbedding] = resultOf(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func resultOf(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
