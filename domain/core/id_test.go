package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseDatasetID tests dataset ID parsing
func TestParseDatasetID(t *testing.T) {
	tests := []struct {
		input    string
		expected DatasetID
		hasError bool
	}{
		{"measles-london", DatasetID("measles-london"), false},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseDatasetID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestComputeSeriesHashStability tests that the same series always produces
// the same fingerprint and different series do not.
func TestComputeSeriesHashStability(t *testing.T) {
	a := ComputeSeriesHash("cases", []float64{1, 2, 3.5})
	b := ComputeSeriesHash("cases", []float64{1, 2, 3.5})
	c := ComputeSeriesHash("cases", []float64{1, 2, 3.5000001})

	if !Hash(a).Equals(Hash(b)) {
		t.Error("Identical series produced different hashes")
	}
	if Hash(a).Equals(Hash(c)) {
		t.Error("Different series produced identical hashes")
	}
}

// TestErrorHelpers tests sentinel classification through wrapped errors
func TestErrorHelpers(t *testing.T) {
	if !IsDomainError(NewDomainError("probability", 1.3)) {
		t.Error("Expected domain error classification")
	}
	if !IsDataError(NewAlignmentError("cases and births differ in length")) {
		t.Error("Expected data error classification")
	}
	if !IsDataError(NewInsufficientDataError("seasonal fit", 2, 1)) {
		t.Error("Expected insufficient data to classify as data error")
	}
	if !IsConvergenceError(NewConvergenceError("nelder-mead", 500)) {
		t.Error("Expected convergence error classification")
	}
	if !IsIdentifiabilityError(NewIdentifiabilityError("singular design matrix")) {
		t.Error("Expected identifiability error classification")
	}
	if IsDomainError(NewConvergenceError("nelder-mead", 500)) {
		t.Error("Convergence error must not classify as domain error")
	}
	if !IsNotFoundError(ErrRunNotFound) {
		t.Error("Expected run-not-found to classify as not found")
	}
}
