// Package rng provides the deterministic random stream adapter. Every unit
// of parallel work (a grid candidate, an ensemble trajectory) gets its own
// seeded stream derived from stable names, so runs replay bit-identically
// regardless of goroutine scheduling.
package rng

import (
	"context"
	"math/rand"
)

// Adapter implements ports.RNGPort with deterministic seed derivation.
type Adapter struct{}

// New creates the stream adapter.
func New() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if name != "" {
		seed += int64(hashString(name))
	}
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG stream for one unit of parallel work.
// The seed is derived by hashing runID + stage + unitKey onto the base
// seed, so the same combination always yields the same stream.
func (a *Adapter) Stream(ctx context.Context, runID, stage, unitKey string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if runID != "" {
		seed += int64(hashString(runID))
	}
	if stage != "" {
		seed += int64(hashString(stage))
	}
	if unitKey != "" {
		seed += int64(hashString(unitKey))
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c)
	}
	return hash
}
