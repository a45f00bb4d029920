package epi

import (
	"crypto/sha256"
	"fmt"

	"epifit/domain/core"
)

// RunKind names the pipeline that produced a run.
type RunKind string

const (
	RunTSIR          RunKind = "tsir"
	RunChainBinomial RunKind = "chain_binomial"
)

// RunManifest is the truth source for replaying a run: it pins the data,
// the configuration, and the seed, and carries a fingerprint over all of
// them. It is written to the ledger before any fit artifacts.
type RunManifest struct {
	RunID       core.RunID      `json:"run_id"`
	Kind        RunKind         `json:"kind"`
	DatasetID   core.DatasetID  `json:"dataset_id"`
	DataHash    core.SeriesHash `json:"data_hash"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// NewRunManifest creates a manifest and computes its fingerprint.
func NewRunManifest(
	kind RunKind,
	datasetID core.DatasetID,
	dataHash core.SeriesHash,
	configHash core.ConfigHash,
	seed int64,
	codeVersion string,
) *RunManifest {
	return &RunManifest{
		RunID:       core.RunID(core.NewID()),
		Kind:        kind,
		DatasetID:   datasetID,
		DataHash:    dataHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(kind, datasetID, dataHash, configHash, seed, codeVersion),
		CreatedAt:   core.Now(),
	}
}

// computeRunFingerprint generates a deterministic hash from everything
// that determines a run's outputs.
func computeRunFingerprint(
	kind RunKind,
	datasetID core.DatasetID,
	dataHash core.SeriesHash,
	configHash core.ConfigHash,
	seed int64,
	codeVersion string,
) core.Hash {
	data := fmt.Sprintf("kind:%s|dataset:%s|data:%s|config:%s|seed:%d|code:%s",
		kind, datasetID, dataHash, configHash, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// ToArtifact converts the manifest into a ledger artifact.
func (m *RunManifest) ToArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactRun,
		Payload:   m,
		CreatedAt: m.CreatedAt,
	}
}

// Validate checks if the manifest is complete.
func (m *RunManifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.Kind != RunTSIR && m.Kind != RunChainBinomial {
		return core.NewValidationError("run_manifest", "unknown run kind "+string(m.Kind))
	}
	if core.ID(m.DatasetID).IsEmpty() {
		return core.NewValidationError("run_manifest", "dataset_id cannot be empty")
	}
	if m.DataHash == "" {
		return core.NewValidationError("run_manifest", "data_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
