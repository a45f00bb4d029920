// Package testkit provides in-memory adapters and synthetic data for
// tests and for running the application without external services.
package testkit

import (
	"context"
	"sync"

	"epifit/adapters/rng"
	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	ledger   *InMemoryLedgerAdapter
	datasets *FixtureDatasetPort
}

// NewTestKit creates a new test kit instance with synthetic data
func NewTestKit() (*TestKit, error) {
	kit := &TestKit{
		ledger:   NewInMemoryLedgerAdapter(),
		datasets: NewFixtureDatasetPort(),
	}
	return kit, nil
}

// LedgerAdapter returns the shared in-memory ledger
func (t *TestKit) LedgerAdapter() ports.LedgerPort {
	return t.ledger
}

// LedgerReaderAdapter returns a read-only view of the shared ledger
func (t *TestKit) LedgerReaderAdapter() ports.LedgerReaderPort {
	return t.ledger
}

// RNGAdapter returns the deterministic stream adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.New()
}

// DatasetAdapter returns the fixture dataset port
func (t *TestKit) DatasetAdapter() ports.DatasetPort {
	return t.datasets
}

// RegisterDataset adds a fixture the dataset port will serve by name
func (t *TestKit) RegisterDataset(name string, ds *epi.Dataset) {
	t.datasets.Register(name, ds)
}

// FixtureDatasetPort serves registered in-memory datasets by name
type FixtureDatasetPort struct {
	mu       sync.RWMutex
	datasets map[string]*epi.Dataset
}

// NewFixtureDatasetPort creates a fixture port pre-loaded with the default
// synthetic dataset under the name "synthetic".
func NewFixtureDatasetPort() *FixtureDatasetPort {
	p := &FixtureDatasetPort{datasets: make(map[string]*epi.Dataset)}
	p.Register("synthetic", SyntheticDataset("synthetic", 520))
	return p
}

// Register adds or replaces a fixture
func (p *FixtureDatasetPort) Register(name string, ds *epi.Dataset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.datasets[name] = ds
}

// Load implements ports.DatasetPort
func (p *FixtureDatasetPort) Load(ctx context.Context, source string) (*epi.Dataset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ds, ok := p.datasets[source]
	if !ok {
		return nil, core.NewNotFoundError("dataset", source)
	}
	return ds, nil
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	artifacts    map[core.ArtifactID]core.Artifact
	runArtifacts map[core.RunID][]core.ArtifactID
	manifests    map[core.RunID]*epi.RunManifest
	runOrder     []core.RunID
	mu           sync.RWMutex
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		artifacts:    make(map[core.ArtifactID]core.Artifact),
		runArtifacts: make(map[core.RunID][]core.ArtifactID),
		manifests:    make(map[core.RunID]*epi.RunManifest),
	}
}

func (s *InMemoryLedgerAdapter) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifactID := core.ArtifactID(artifact.ID)
	s.artifacts[artifactID] = artifact

	runIDTyped := core.RunID(runID)
	if s.runArtifacts[runIDTyped] == nil {
		s.runArtifacts[runIDTyped] = []core.ArtifactID{}
	}
	s.runArtifacts[runIDTyped] = append(s.runArtifacts[runIDTyped], artifactID)

	// Run manifests are indexed so replay and listing can find them.
	if artifact.Kind == core.ArtifactRun {
		if manifest, ok := artifact.Payload.(*epi.RunManifest); ok {
			if _, seen := s.manifests[runIDTyped]; !seen {
				s.runOrder = append(s.runOrder, runIDTyped)
			}
			s.manifests[runIDTyped] = manifest
		}
	}

	return nil
}

func (s *InMemoryLedgerAdapter) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.Artifact
	count := 0

	for _, artifact := range s.artifacts {
		if filters.Kind != nil && artifact.Kind != *filters.Kind {
			continue
		}

		if filters.RunID != nil {
			runArtifacts, exists := s.runArtifacts[*filters.RunID]
			if !exists {
				continue
			}
			found := false
			for _, aid := range runArtifacts {
				if aid == core.ArtifactID(artifact.ID) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		results = append(results, artifact)
		count++
		if filters.Limit > 0 && count >= filters.Limit {
			break
		}
	}

	return results, nil
}

func (s *InMemoryLedgerAdapter) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[artifactID]
	if !exists {
		return nil, core.NewNotFoundError("artifact", artifactID.String())
	}

	return &artifact, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifactIDs, exists := s.runArtifacts[runID]
	if !exists {
		return []core.Artifact{}, nil
	}

	artifacts := make([]core.Artifact, 0, len(artifactIDs))
	for _, aid := range artifactIDs {
		if artifact, ok := s.artifacts[aid]; ok {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

func (s *InMemoryLedgerAdapter) ListRuns(ctx context.Context, limit int) ([]epi.RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]epi.RunManifest, 0, len(s.runOrder))
	// Most recent first.
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		runs = append(runs, *s.manifests[s.runOrder[i]])
	}
	return runs, nil
}

func (s *InMemoryLedgerAdapter) GetRunManifest(ctx context.Context, runID core.RunID) (*epi.RunManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	manifest, exists := s.manifests[runID]
	if !exists {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	return manifest, nil
}
