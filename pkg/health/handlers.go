package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves the general health probe. Degraded components still
// answer 200 so load balancers keep routing.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return c.handler(ProbeHealth, StatusDegraded)
}

// ReadinessHandler answers 200 only when every readiness check is healthy
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return c.handler(ProbeReady, StatusHealthy)
}

// LivenessHandler answers 200 only when every liveness check is healthy
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return c.handler(ProbeLive, StatusHealthy)
}

// handler answers 503 when the probe status is worse than tolerated
func (c *Checker) handler(probe Probe, tolerated Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.Run(r.Context(), probe)
		status := http.StatusOK
		if resp.Status.rank() > tolerated.rank() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
