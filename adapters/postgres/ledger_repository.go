// Package postgres persists the fit ledger: run manifests and the
// artifacts each pipeline stage appends. Artifacts are stored as JSONB
// so consumers can query payloads without schema churn.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/ports"
)

// LedgerRepository implements ports.LedgerPort on PostgreSQL.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a repository over an open connection pool.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Bootstrap creates the ledger schema when it does not exist yet.
func (r *LedgerRepository) Bootstrap(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS run_manifests (
			run_id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			dataset_id VARCHAR(64) NOT NULL,
			data_hash VARCHAR(64) NOT NULL,
			config_hash VARCHAR(64) NOT NULL,
			seed BIGINT NOT NULL,
			code_version VARCHAR(64) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			payload JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS artifacts_run_idx ON artifacts (run_id)`,
		`CREATE INDEX IF NOT EXISTS artifacts_kind_idx ON artifacts (kind)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap ledger schema: %w", err)
		}
	}
	return nil
}

// StoreArtifact appends one artifact to the ledger. Run-manifest
// artifacts are additionally upserted into the manifest index so runs
// can be listed without decoding payloads.
func (r *LedgerRepository) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	payload, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("encode artifact payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, artifact.ID.String(), runID, string(artifact.Kind), types.JSONText(payload), artifact.CreatedAt.Time())
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	if artifact.Kind == core.ArtifactRun {
		if manifest, ok := artifact.Payload.(*epi.RunManifest); ok {
			return r.storeManifest(ctx, manifest)
		}
	}
	return nil
}

func (r *LedgerRepository) storeManifest(ctx context.Context, m *epi.RunManifest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_manifests (run_id, kind, dataset_id, data_hash, config_hash, seed, code_version, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			dataset_id = EXCLUDED.dataset_id,
			data_hash = EXCLUDED.data_hash,
			config_hash = EXCLUDED.config_hash,
			seed = EXCLUDED.seed,
			code_version = EXCLUDED.code_version,
			fingerprint = EXCLUDED.fingerprint
	`, m.RunID.String(), string(m.Kind), m.DatasetID.String(), m.DataHash.String(), m.ConfigHash.String(),
		m.Seed, m.CodeVersion, m.Fingerprint.String(), m.CreatedAt.Time())
	if err != nil {
		return fmt.Errorf("store run manifest: %w", err)
	}
	return nil
}

// ListArtifacts returns artifacts matching the filters, oldest first.
func (r *LedgerRepository) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts`
	var clauses []string
	var args []interface{}

	if filters.RunID != nil {
		args = append(args, filters.RunID.String())
		clauses = append(clauses, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filters.Kind != nil {
		args = append(args, string(*filters.Kind))
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// GetArtifact returns one artifact by id.
func (r *LedgerRepository) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, payload, created_at FROM artifacts WHERE id = $1
	`, artifactID.String())

	artifact, err := scanArtifact(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("artifact", artifactID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// GetArtifactsByRun returns every artifact of a run, oldest first. Runs
// without artifacts produce an empty slice, not an error.
func (r *LedgerRepository) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, payload, created_at FROM artifacts WHERE run_id = $1 ORDER BY created_at
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("artifacts by run: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

// GetArtifactsByKind returns the most recently stored artifacts of one kind.
func (r *LedgerRepository) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return r.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// ListRuns returns run manifests, most recent first.
func (r *LedgerRepository) ListRuns(ctx context.Context, limit int) ([]epi.RunManifest, error) {
	query := `
		SELECT run_id, kind, dataset_id, data_hash, config_hash, seed, code_version, fingerprint, created_at
		FROM run_manifests
		ORDER BY created_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []epi.RunManifest{}
	for rows.Next() {
		m, err := scanManifest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *m)
	}
	return runs, rows.Err()
}

// GetRunManifest returns the manifest of one run.
func (r *LedgerRepository) GetRunManifest(ctx context.Context, runID core.RunID) (*epi.RunManifest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_id, kind, dataset_id, data_hash, config_hash, seed, code_version, fingerprint, created_at
		FROM run_manifests
		WHERE run_id = $1
	`, runID.String())

	m, err := scanManifest(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get run manifest: %w", err)
	}
	return m, nil
}

func scanArtifacts(rows *sql.Rows) ([]core.Artifact, error) {
	artifacts := []core.Artifact{}
	for rows.Next() {
		artifact, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, *artifact)
	}
	return artifacts, rows.Err()
}

func scanArtifact(scan func(...interface{}) error) (*core.Artifact, error) {
	var (
		id      string
		kind    string
		payload types.JSONText
		created time.Time
	)
	if err := scan(&id, &kind, &payload, &created); err != nil {
		return nil, err
	}

	var decoded interface{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &core.Artifact{
		ID:        core.ID(id),
		Kind:      core.ArtifactKind(kind),
		Payload:   decoded,
		CreatedAt: core.Timestamp(created),
	}, nil
}

func scanManifest(scan func(...interface{}) error) (*epi.RunManifest, error) {
	var (
		runID, kind, datasetID            string
		dataHash, configHash, fingerprint string
		codeVersion                       string
		seed                              int64
		created                           time.Time
	)
	if err := scan(&runID, &kind, &datasetID, &dataHash, &configHash, &seed, &codeVersion, &fingerprint, &created); err != nil {
		return nil, err
	}
	return &epi.RunManifest{
		RunID:       core.RunID(runID),
		Kind:        epi.RunKind(kind),
		DatasetID:   core.DatasetID(datasetID),
		DataHash:    core.SeriesHash(dataHash),
		ConfigHash:  core.ConfigHash(configHash),
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: core.Hash(fingerprint),
		CreatedAt:   core.Timestamp(created),
	}, nil
}
