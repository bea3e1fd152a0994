package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// SceneCheck reports whether a scene graph is loaded. A server without a
// scene still answers one-shot virtualize calls, so it is degraded rather
// than unhealthy.
func SceneCheck(scene func() (loaded bool, nodes, connections int)) CheckFunc {
	return func(context.Context) Check {
		loaded, nodes, connections := scene()
		check := Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d nodes, %d connections", nodes, connections),
			Details: map[string]any{"loaded": loaded, "nodes": nodes, "connections": connections},
		}
		if !loaded {
			check.Status = StatusDegraded
			check.Message = "no scene graph loaded"
		}
		return check
	}
}

// ErrDegraded marks a probe error that leaves the component serving
var ErrDegraded = errors.New("degraded")

// EngineCheck runs probe through the virtualization engine. Errors wrapping
// ErrDegraded report degraded, any other error unhealthy.
func EngineCheck(probe func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		if err := probe(ctx); err != nil {
			if errors.Is(err, ErrDegraded) {
				return Check{Status: StatusDegraded, Message: err.Error()}
			}
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy, Message: "virtualizer responding"}
	}
}

// ClusterCacheCheck reports cluster cache occupancy. The cache only shrinks on
// a clear or config update, so growth past maxEntries is flagged as degraded.
func ClusterCacheCheck(maxEntries int, cache func() (size int, hits, misses uint64)) CheckFunc {
	return func(context.Context) Check {
		size, hits, misses := cache()
		check := Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d cached clusters", size),
			Details: map[string]any{"entries": size, "hits": hits, "misses": misses},
		}
		if lookups := hits + misses; lookups > 0 {
			check.Details["hit_ratio"] = float64(hits) / float64(lookups)
		}
		if maxEntries > 0 && size > maxEntries {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("%d cached clusters exceeds %d, clear the cache", size, maxEntries)
		}
		return check
	}
}

// MemoryCheck is degraded once the live heap passes limitBytes; 0 disables the limit
func MemoryCheck(limitBytes uint64, usage func() (alloc, sys uint64)) CheckFunc {
	return func(context.Context) Check {
		alloc, sys := usage()
		check := Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d MiB allocated", alloc>>20),
			Details: map[string]any{"alloc_bytes": alloc, "sys_bytes": sys, "limit_bytes": limitBytes},
		}
		if limitBytes > 0 && alloc > limitBytes {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("heap %d MiB over the %d MiB limit", alloc>>20, limitBytes>>20)
		}
		return check
	}
}

// RuntimeMemory reads heap usage from the Go runtime
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}
