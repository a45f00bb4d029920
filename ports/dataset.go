package ports

import (
	"context"

	"epifit/domain/epi"
)

// DatasetPort loads aligned epidemic datasets from a named source (a file
// path for the CSV/XLSX adapters, a fixture name for the test kit).
// Implementations must return datasets that pass epi.Dataset.Validate.
type DatasetPort interface {
	Load(ctx context.Context, source string) (*epi.Dataset, error)
}
