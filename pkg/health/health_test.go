package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"
)

func fixed(status Status) CheckFunc {
	return func(context.Context) Check {
		return Check{Status: status, Message: string(status)}
	}
}

func TestChecker_RunSelectsByProbe(t *testing.T) {
	c := NewChecker()
	c.Register("scene", fixed(StatusHealthy), ProbeHealth)
	c.Register("engine", fixed(StatusHealthy), ProbeAll)
	c.Register("warmup", fixed(StatusHealthy), ProbeReady)

	tests := []struct {
		probe Probe
		want  []string
	}{
		{ProbeHealth, []string{"engine", "scene"}},
		{ProbeReady, []string{"engine", "warmup"}},
		{ProbeLive, []string{"engine"}},
	}
	for _, tt := range tests {
		if got := c.Names(tt.probe); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Names(%d) = %v, want %v", tt.probe, got, tt.want)
		}
		resp := c.Run(context.Background(), tt.probe)
		if len(resp.Checks) != len(tt.want) {
			t.Errorf("Run(%d) ran %d checks, want %d", tt.probe, len(resp.Checks), len(tt.want))
		}
		for _, name := range tt.want {
			if resp.Checks[name].Name != name {
				t.Errorf("check %q missing its name: %+v", name, resp.Checks[name])
			}
		}
	}
}

// TestChecker_WorstStatusWins tests status aggregation across checks
func TestChecker_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"empty status is unhealthy", []Status{""}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				c.Register(string(rune('a'+i)), fixed(s), ProbeHealth)
			}
			if got := c.Run(context.Background(), ProbeHealth).Status; got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(20 * time.Millisecond)
	c.SetTimeout(0) // ignored
	c.Register("stuck", func(ctx context.Context) Check {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Check{Status: StatusHealthy}
	}, ProbeLive)

	start := time.Now()
	resp := c.Run(context.Background(), ProbeLive)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Run took %v", elapsed)
	}
	check := resp.Checks["stuck"]
	if check.Status != StatusUnhealthy || check.Message != "check timed out" {
		t.Errorf("unexpected check %+v", check)
	}
	if check.DurationMS < 15 {
		t.Errorf("duration %vms should cover the timeout", check.DurationMS)
	}
}

func TestChecker_RunsConcurrently(t *testing.T) {
	c := NewChecker()
	var started sync.WaitGroup
	started.Add(3)
	release := make(chan struct{})
	for _, name := range []string{"a", "b", "c"} {
		c.Register(name, func(ctx context.Context) Check {
			started.Done()
			select {
			case <-release:
			case <-ctx.Done():
			}
			return Check{Status: StatusHealthy}
		}, ProbeHealth)
	}

	go func() {
		started.Wait()
		close(release)
	}()
	resp := c.Run(context.Background(), ProbeHealth)
	if resp.Status != StatusHealthy {
		t.Errorf("checks blocked each other: %+v", resp.Checks)
	}
}

func TestChecker_RegisterReplaces(t *testing.T) {
	c := NewChecker()
	c.Register("engine", fixed(StatusUnhealthy), ProbeAll)
	c.Register("engine", fixed(StatusHealthy), ProbeLive)

	if names := c.Names(ProbeHealth); len(names) != 0 {
		t.Errorf("replaced check still on health probe: %v", names)
	}
	if got := c.Run(context.Background(), ProbeLive).Status; got != StatusHealthy {
		t.Errorf("status = %q", got)
	}
}

func TestSceneCheck(t *testing.T) {
	check := SceneCheck(func() (bool, int, int) { return false, 0, 0 })(context.Background())
	if check.Status != StatusDegraded || check.Details["loaded"] != false {
		t.Errorf("empty scene: %+v", check)
	}

	check = SceneCheck(func() (bool, int, int) { return true, 1200, 3400 })(context.Background())
	if check.Status != StatusHealthy || check.Message != "1200 nodes, 3400 connections" {
		t.Errorf("loaded scene: %+v", check)
	}
}

func TestEngineCheck(t *testing.T) {
	ok := EngineCheck(func(context.Context) error { return nil })(context.Background())
	if ok.Status != StatusHealthy {
		t.Errorf("healthy probe: %+v", ok)
	}

	bad := EngineCheck(func(context.Context) error { return errors.New("config invalid") })(context.Background())
	if bad.Status != StatusUnhealthy || bad.Message != "config invalid" {
		t.Errorf("failing probe: %+v", bad)
	}

	odd := EngineCheck(func(context.Context) error {
		return fmt.Errorf("%w: viewport buffer -5 shrinks the viewport", ErrDegraded)
	})(context.Background())
	if odd.Status != StatusDegraded || odd.Message != "degraded: viewport buffer -5 shrinks the viewport" {
		t.Errorf("degraded probe: %+v", odd)
	}
}

func TestClusterCacheCheck(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		hits      uint64
		misses    uint64
		want      Status
		wantRatio any
	}{
		{"empty", 0, 0, 0, StatusHealthy, nil},
		{"warm", 40, 30, 10, StatusHealthy, 0.75},
		{"oversized", 101, 0, 101, StatusDegraded, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ClusterCacheCheck(100, func() (int, uint64, uint64) {
				return tt.size, tt.hits, tt.misses
			})(context.Background())
			if check.Status != tt.want {
				t.Errorf("status = %q, want %q", check.Status, tt.want)
			}
			if got := check.Details["hit_ratio"]; got != tt.wantRatio {
				t.Errorf("hit_ratio = %v, want %v", got, tt.wantRatio)
			}
		})
	}

	unbounded := ClusterCacheCheck(0, func() (int, uint64, uint64) { return 1 << 20, 0, 0 })(context.Background())
	if unbounded.Status != StatusHealthy {
		t.Errorf("limit 0 should disable the bound: %+v", unbounded)
	}
}

func TestMemoryCheck(t *testing.T) {
	usage := func() (uint64, uint64) { return 3 << 20, 8 << 20 }

	if c := MemoryCheck(4<<20, usage)(context.Background()); c.Status != StatusHealthy {
		t.Errorf("under limit: %+v", c)
	}
	if c := MemoryCheck(2<<20, usage)(context.Background()); c.Status != StatusDegraded {
		t.Errorf("over limit: %+v", c)
	}
	if c := MemoryCheck(0, usage)(context.Background()); c.Status != StatusHealthy {
		t.Errorf("no limit: %+v", c)
	}

	if alloc, sys := RuntimeMemory(); alloc == 0 || sys < alloc {
		t.Errorf("RuntimeMemory() = %d, %d", alloc, sys)
	}
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.Register("scene", fixed(StatusDegraded), ProbeHealth)
	c.Register("engine", fixed(StatusHealthy), ProbeReady|ProbeLive)
	c.Register("warmup", fixed(StatusDegraded), ProbeReady)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  Status
	}{
		{"health tolerates degraded", c.HTTPHandler(), http.StatusOK, StatusDegraded},
		{"readiness requires healthy", c.ReadinessHandler(), http.StatusServiceUnavailable, StatusDegraded},
		{"liveness", c.LivenessHandler(), http.StatusOK, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.handler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.code {
				t.Errorf("code = %d, want %d", rr.Code, tt.code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp Response
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad body %q: %v", rr.Body.String(), err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %q, want %q", resp.Status, tt.status)
			}
		})
	}
}

func TestHandlers_UnhealthyIs503(t *testing.T) {
	c := NewChecker()
	c.Register("engine", fixed(StatusUnhealthy), ProbeAll)

	rr := httptest.NewRecorder()
	c.HTTPHandler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", rr.Code)
	}
}
