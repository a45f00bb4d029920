package rng

import (
	"context"
	"testing"
)

// TestStreamDeterminism tests that identical stream coordinates reproduce
// identical draws and distinct coordinates do not.
func TestStreamDeterminism(t *testing.T) {
	ctx := context.Background()
	adapter := New()

	a, err := adapter.Stream(ctx, "run-1", "ensemble", "traj-7", 42)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	b, err := adapter.Stream(ctx, "run-1", "ensemble", "traj-7", 42)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	c, err := adapter.Stream(ctx, "run-1", "ensemble", "traj-8", 42)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	same, diff := true, false
	for i := 0; i < 100; i++ {
		va, vb, vc := a.Float64(), b.Float64(), c.Float64()
		if va != vb {
			same = false
		}
		if va != vc {
			diff = true
		}
	}
	if !same {
		t.Error("Identical stream coordinates produced different draws")
	}
	if !diff {
		t.Error("Distinct unit keys produced identical streams")
	}
}

// TestSeededStreamNames tests that named streams are independent
func TestSeededStreamNames(t *testing.T) {
	ctx := context.Background()
	adapter := New()

	a, _ := adapter.SeededStream(ctx, "grid", 7)
	b, _ := adapter.SeededStream(ctx, "simulate", 7)

	identical := true
	for i := 0; i < 50; i++ {
		if a.Float64() != b.Float64() {
			identical = false
			break
		}
	}
	if identical {
		t.Error("Differently named streams with the same seed should diverge")
	}
}
