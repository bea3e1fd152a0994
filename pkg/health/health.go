// Package health aggregates component checks into the /health, /health/ready
// and /health/live answers of the causalview server.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is the outcome of one check, or the worst outcome of a probe
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank orders statuses from best to worst
func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Probe selects which endpoints run a check. Values combine with |.
type Probe uint8

const (
	ProbeHealth Probe = 1 << iota
	ProbeReady
	ProbeLive

	ProbeAll = ProbeHealth | ProbeReady | ProbeLive
)

// DefaultCheckTimeout bounds a single check
const DefaultCheckTimeout = 2 * time.Second

// Check is the result of one component check
type Check struct {
	Name       string         `json:"name"`
	Status     Status         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMS float64        `json:"duration_ms"`
}

// CheckFunc inspects one component. It should return promptly once ctx is done.
type CheckFunc func(ctx context.Context) Check

// Response is the body of every health endpoint
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Checks        map[string]Check `json:"checks"`
}

type registered struct {
	fn     CheckFunc
	probes Probe
}

// Checker holds the registered checks. Checks of one probe run concurrently.
type Checker struct {
	mu        sync.RWMutex
	checks    map[string]registered
	timeout   time.Duration
	startedAt time.Time
}

// NewChecker creates a checker with DefaultCheckTimeout
func NewChecker() *Checker {
	return &Checker{
		checks:    make(map[string]registered),
		timeout:   DefaultCheckTimeout,
		startedAt: time.Now(),
	}
}

// SetTimeout changes the per-check timeout; non-positive values are ignored
func (c *Checker) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Register adds or replaces the check called name for the given probes
func (c *Checker) Register(name string, fn CheckFunc, probes Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{fn: fn, probes: probes}
}

// Names lists the checks a probe runs, sorted
func (c *Checker) Names(probe Probe) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for name, r := range c.checks {
		if r.probes&probe != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes every check registered for probe. A check that outlives the
// timeout is reported unhealthy.
func (c *Checker) Run(ctx context.Context, probe Probe) Response {
	c.mu.RLock()
	timeout := c.timeout
	selected := make(map[string]CheckFunc)
	for name, r := range c.checks {
		if r.probes&probe != 0 {
			selected[name] = r.fn
		}
	}
	c.mu.RUnlock()

	resp := Response{
		Status:        StatusHealthy,
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Checks:        make(map[string]Check, len(selected)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, fn := range selected {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			check := runOne(ctx, name, fn, timeout)

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = check
			if check.Status.rank() > resp.Status.rank() {
				resp.Status = check.Status
			}
		}(name, fn)
	}
	wg.Wait()
	return resp
}

func runOne(parent context.Context, name string, fn CheckFunc, timeout time.Duration) Check {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Check, 1)
	go func() {
		done <- fn(ctx)
	}()

	var check Check
	select {
	case check = <-done:
	case <-ctx.Done():
		check = Check{Status: StatusUnhealthy, Message: "check timed out"}
	}

	check.Name = name
	if check.Status == "" {
		check.Status = StatusUnhealthy
	}
	check.CheckedAt = start
	check.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	return check
}
