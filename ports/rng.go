package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for one unit of parallel work
	// (one ensemble trajectory, one grid candidate). Identical (runID, stage,
	// unitKey, baseSeed) always yields an identical stream, so a run replays
	// exactly regardless of scheduling order.
	Stream(ctx context.Context, runID, stage, unitKey string, baseSeed int64) (*rand.Rand, error)
}
