package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID      ID
	DatasetID  ID
	ArtifactID ID
)

// String conversions for domain IDs
func (id RunID) String() string      { return ID(id).String() }
func (id DatasetID) String() string  { return ID(id).String() }
func (id ArtifactID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseDatasetID parses a string into DatasetID
func ParseDatasetID(s string) (DatasetID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("dataset ID cannot be empty")
	}
	return DatasetID(s), nil
}

// ParseArtifactID parses a string into ArtifactID
func ParseArtifactID(s string) (ArtifactID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("artifact ID cannot be empty")
	}
	return ArtifactID(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ID           `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Payload   interface{}  `json:"payload"`
	CreatedAt Timestamp    `json:"created_at"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	// ArtifactReconstruction is the output of susceptible reconstruction
	// (reporting-rate curve, susceptible deviations, corrected incidence).
	ArtifactReconstruction ArtifactKind = "reconstruction"
	// ArtifactSeasonalFit captures the fitted seasonal transmission model.
	ArtifactSeasonalFit ArtifactKind = "seasonal_fit"
	// ArtifactGridScan captures a profile scan over candidate parameters.
	ArtifactGridScan ArtifactKind = "grid_scan"
	// ArtifactJointFit captures a joint maximum-likelihood fit with uncertainty.
	ArtifactJointFit ArtifactKind = "joint_fit"
	// ArtifactSimulation captures simulated trajectories or ensemble summaries.
	ArtifactSimulation ArtifactKind = "simulation"
	ArtifactReport     ArtifactKind = "report"
	ArtifactRun        ArtifactKind = "run"
)
