package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "crunching.queue_capacity")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCrunching()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateCrunching() []ValidationError {
	var errors []ValidationError

	if c.Crunching.Backend == "" {
		errors = append(errors, ValidationError{
			Field:   "crunching.backend",
			Value:   c.Crunching.Backend,
			Message: "must not be empty",
		})
	}
	if c.Crunching.QueueCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "crunching.queue_capacity",
			Value:   c.Crunching.QueueCapacity,
			Message: "must be at least 1",
		})
	}
	if c.Crunching.SyncIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "crunching.sync_interval_ms",
			Value:   c.Crunching.SyncIntervalMs,
			Message: "must be at least 1",
		})
	}
	if c.Crunching.PoolSlots < 1 {
		errors = append(errors, ValidationError{
			Field:   "crunching.pool_slots",
			Value:   c.Crunching.PoolSlots,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
