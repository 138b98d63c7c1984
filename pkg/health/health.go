// Package health provides liveness and readiness probes for the API
// server. Readiness checks run on demand when the probe endpoint is
// hit, each under its own timeout, so the reported state is never
// stale.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Service tracks a manual ready gate plus a set of named readiness
// checks. The gate is flipped off during graceful shutdown so load
// balancers stop routing before the listener closes.
type Service struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []check
}

// New creates a Service in the not-ready state; call SetReady(true)
// once initialization completes.
func New() *Service {
	return &Service{}
}

// AddCheck registers a named readiness check with a per-run timeout.
func (s *Service) AddCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual ready gate.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// statusResponse is the JSON body served by the probe endpoints.
type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 whenever the process can answer.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, statusResponse{Status: "ok"})
}

// ReadyEndpoint serves /readyz: 200 when the ready gate is open and
// every registered check passes, 503 with per-check detail otherwise.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	resp, code := s.evaluate(r.Context())
	writeStatus(w, code, resp)
}

// HealthEndpoint serves the public health route. Same evaluation as
// readiness but always includes per-check results, healthy or not.
func (s *Service) HealthEndpoint(w http.ResponseWriter, r *http.Request) {
	resp, code := s.evaluate(r.Context())
	if resp.Checks == nil {
		resp.Checks = map[string]string{}
	}
	s.mu.RLock()
	for _, c := range s.checks {
		if _, failed := resp.Checks[c.name]; !failed {
			resp.Checks[c.name] = "ok"
		}
	}
	s.mu.RUnlock()
	writeStatus(w, code, resp)
}

func (s *Service) evaluate(ctx context.Context) (statusResponse, int) {
	failures := map[string]string{}
	if !s.ready.Load() {
		failures["_gate"] = "service is not ready"
	}

	s.mu.RLock()
	checks := make([]check, len(s.checks))
	copy(checks, s.checks)
	s.mu.RUnlock()

	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.fn(checkCtx)
		cancel()
		if err != nil {
			failures[c.name] = err.Error()
		}
	}

	if len(failures) > 0 {
		return statusResponse{Status: "unhealthy", Checks: failures}, http.StatusServiceUnavailable
	}
	return statusResponse{Status: "ok"}, http.StatusOK
}

func writeStatus(w http.ResponseWriter, code int, resp statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
