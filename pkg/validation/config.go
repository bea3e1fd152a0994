package validation

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// FieldError is one rejected config key
type FieldError struct {
	Config string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Config, e.Field, e.Reason)
}

// ConfigValidator checks config values fluently and keeps every failure, so a
// bad file reports all of its problems at once.
type ConfigValidator struct {
	name string
	errs []error
}

// NewConfigValidator starts a validator for the config called name
func NewConfigValidator(name string) *ConfigValidator {
	return &ConfigValidator{name: name}
}

func (cv *ConfigValidator) fail(field, format string, args ...any) *ConfigValidator {
	cv.errs = append(cv.errs, &FieldError{Config: cv.name, Field: field, Reason: fmt.Sprintf(format, args...)})
	return cv
}

// Required rejects an empty string
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.fail(field, "required")
	}
	return cv
}

// OneOf rejects values outside allowed
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if !slices.Contains(allowed, value) {
		return cv.fail(field, "%q is not one of %v", value, allowed)
	}
	return cv
}

// RangeInt rejects values outside [lo, hi]
func (cv *ConfigValidator) RangeInt(field string, value, lo, hi int) *ConfigValidator {
	return inRange(cv, field, value, lo, hi)
}

// RangeDuration rejects durations outside [lo, hi]
func (cv *ConfigValidator) RangeDuration(field string, value, lo, hi time.Duration) *ConfigValidator {
	return inRange(cv, field, value, lo, hi)
}

// RangeFloat rejects NaN and values outside [lo, hi]
func (cv *ConfigValidator) RangeFloat(field string, value, lo, hi float64) *ConfigValidator {
	if math.IsNaN(value) {
		return cv.fail(field, "NaN is not a number")
	}
	return inRange(cv, field, value, lo, hi)
}

// NonNegative rejects values below zero
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	if value < 0 {
		return cv.fail(field, "%d must not be negative", value)
	}
	return cv
}

// NonNegativeFloat rejects NaN, infinities and values below zero
func (cv *ConfigValidator) NonNegativeFloat(field string, value float64) *ConfigValidator {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return cv.fail(field, "%g must be a finite, non-negative number", value)
	}
	return cv
}

// Ascending rejects a list that is not strictly increasing
func (cv *ConfigValidator) Ascending(field string, values []float64) *ConfigValidator {
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return cv.fail(field, "must be strictly ascending, got %v", values)
		}
	}
	return cv
}

// Custom records fn's error against field
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		return cv.fail(field, "%v", err)
	}
	return cv
}

// When runs rules only if cond holds, typically for optional fields
func (cv *ConfigValidator) When(cond bool, rules func(*ConfigValidator)) *ConfigValidator {
	if cond {
		rules(cv)
	}
	return cv
}

// Errors returns every failure so far
func (cv *ConfigValidator) Errors() []error {
	return cv.errs
}

// Validate returns nil, the single failure, or all failures joined
func (cv *ConfigValidator) Validate() error {
	switch len(cv.errs) {
	case 0:
		return nil
	case 1:
		return cv.errs[0]
	default:
		return fmt.Errorf("%s has %d invalid fields: %w", cv.name, len(cv.errs), errors.Join(cv.errs...))
	}
}

func inRange[T cmp.Ordered](cv *ConfigValidator, field string, value, lo, hi T) *ConfigValidator {
	if value < lo || value > hi {
		return cv.fail(field, "%v is outside [%v, %v]", value, lo, hi)
	}
	return cv
}

// Validatable is implemented by config types that check themselves
type Validatable interface {
	Validate() error
}

// ValidateConfig validates config, rejecting a nil value
func ValidateConfig(config Validatable) error {
	if config == nil {
		return errors.New("config is nil")
	}
	return config.Validate()
}

// DefaultOr returns value unless it is the zero value
func DefaultOr[T comparable](value, def T) T {
	var zero T
	if value == zero {
		return def
	}
	return value
}

// DefaultOrDuration returns value unless it is zero or negative
func DefaultOrDuration(value, def time.Duration) time.Duration {
	if value <= 0 {
		return def
	}
	return value
}
