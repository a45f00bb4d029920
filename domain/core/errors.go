package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrRunNotFound      = fmt.Errorf("%w: run", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("%w: artifact", ErrNotFound)
	ErrDatasetNotFound  = fmt.Errorf("%w: dataset", ErrNotFound)

	// Data errors
	ErrDataAlignment    = errors.New("series misaligned")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrNonIntegerCounts = errors.New("case counts must be whole numbers")

	// Numerical errors
	ErrNumericalDomain = errors.New("value outside model domain")
	ErrIdentifiability = errors.New("model not identifiable")
	ErrConvergence     = errors.New("optimizer did not converge")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewAlignmentError(detail string) error {
	return fmt.Errorf("%w: %s", ErrDataAlignment, detail)
}

func NewInsufficientDataError(what string, need, got int) error {
	return fmt.Errorf("%w: %s needs >= %d observations, got %d", ErrInsufficientData, what, need, got)
}

func NewDomainError(quantity string, value float64) error {
	return fmt.Errorf("%w: %s = %g", ErrNumericalDomain, quantity, value)
}

func NewIdentifiabilityError(detail string) error {
	return fmt.Errorf("%w: %s", ErrIdentifiability, detail)
}

func NewConvergenceError(routine string, iterations int) error {
	return fmt.Errorf("%w: %s exhausted %d iterations", ErrConvergence, routine, iterations)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrDataAlignment) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNonIntegerCounts)
}

func IsDomainError(err error) bool {
	return errors.Is(err, ErrNumericalDomain)
}

func IsIdentifiabilityError(err error) bool {
	return errors.Is(err, ErrIdentifiability)
}

func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrConvergence)
}
