package storage

import (
	"context"
	"time"

	"github.com/dshills/tabparse/pkg/types"
)

// Storage defines the interface for persisting parsed datasets
type Storage interface {
	// Dataset operations
	UpsertDataset(ctx context.Context, dataset *Dataset) error
	GetDataset(ctx context.Context, path string) (*Dataset, error)
	GetDatasetByID(ctx context.Context, datasetID int64) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]*Dataset, error)
	DeleteDataset(ctx context.Context, datasetID int64) error

	// Record operations
	InsertRecord(ctx context.Context, record *StoredRecord) error
	InsertRecords(ctx context.Context, records []*StoredRecord) error
	ListRecords(ctx context.Context, datasetID int64, limit, offset int) ([]*StoredRecord, error)
	CountRecords(ctx context.Context, datasetID int64) (int, error)
	DeleteRecordsByDataset(ctx context.Context, datasetID int64) error
	GetColumns(ctx context.Context, datasetID int64) (*types.Columns, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// FieldDef is one field of the pattern a dataset was parsed with
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Dataset represents one ingested file
type Dataset struct {
	ID             int64
	Path           string // Absolute path of the source file
	Pattern        string
	Separator      string
	Fields         []FieldDef
	Header         []string // Nil when the file had no header
	Comments       []string
	ContentHash    [32]byte
	RecordCount    int
	SkippedCount   int
	RunID          string
	LastIngestedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FieldNames returns the dataset's field names in pattern order
func (d *Dataset) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// StoredRecord is one decoded line of a dataset
type StoredRecord struct {
	ID        int64
	DatasetID int64
	Line      int // 1-based line number in the source file
	Values    map[string]any
	CreatedAt time.Time
}

// Status contains statistics about the database
type Status struct {
	Datasets       []*Dataset
	DatasetsCount  int
	RecordsCount   int
	SkippedCount   int
	SizeMB         float64
	LastIngestedAt time.Time
	Health         HealthStatus
}

// HealthStatus represents the health of the database
type HealthStatus struct {
	DatabaseAccessible bool
	SchemaVersion      string
}
