package graphql

import "fmt"

// LimitConfig bounds the page size of list fields
type LimitConfig struct {
	// DefaultLimit applies when a query gives no limit
	DefaultLimit int
	MaxLimit     int
}

// DefaultLimitConfig caps lists at the largest engine node budget
func DefaultLimitConfig() *LimitConfig {
	return &LimitConfig{DefaultLimit: 500, MaxLimit: 1000}
}

// Validate requires 0 < DefaultLimit <= MaxLimit
func (c *LimitConfig) Validate() error {
	switch {
	case c.MaxLimit <= 0:
		return fmt.Errorf("max limit must be positive, got %d", c.MaxLimit)
	case c.DefaultLimit <= 0:
		return fmt.Errorf("default limit must be positive, got %d", c.DefaultLimit)
	case c.DefaultLimit > c.MaxLimit:
		return fmt.Errorf("default limit %d is above max limit %d", c.DefaultLimit, c.MaxLimit)
	}
	return nil
}

// clamp resolves a requested limit; negative means "not given"
func (c *LimitConfig) clamp(requested int) int {
	if requested < 0 {
		return c.DefaultLimit
	}
	return min(requested, c.MaxLimit)
}

// page slices items by the offset and limit arguments of a list field
func page[T any](items []T, args map[string]any, c *LimitConfig) []T {
	offset, _ := args["offset"].(int)
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}

	limit, ok := args["limit"].(int)
	if !ok {
		limit = -1
	}
	end := min(offset+c.clamp(limit), len(items))
	return items[offset:end]
}
