package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/tabparse/pkg/registry"
	"github.com/dshills/tabparse/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// maxBatchRows bounds a single multi-row INSERT
const maxBatchRows = 500

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Dataset operations

const datasetColumns = `id, path, pattern, separator, fields, header, comments, content_hash,
		       record_count, skipped_count, run_id, last_ingested_at, created_at, updated_at`

// upsertDatasetWithQuerier is the internal implementation that uses a querier
func upsertDatasetWithQuerier(ctx context.Context, q querier, dataset *Dataset) error {
	fields, err := json.Marshal(dataset.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	header, err := marshalNullable(dataset.Header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	comments, err := marshalNullable(dataset.Comments)
	if err != nil {
		return fmt.Errorf("failed to encode comments: %w", err)
	}

	query := `
		INSERT INTO datasets (path, pattern, separator, fields, header, comments, content_hash,
		                      record_count, skipped_count, run_id, last_ingested_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			pattern = excluded.pattern,
			separator = excluded.separator,
			fields = excluded.fields,
			header = excluded.header,
			comments = excluded.comments,
			content_hash = excluded.content_hash,
			record_count = excluded.record_count,
			skipped_count = excluded.skipped_count,
			run_id = excluded.run_id,
			last_ingested_at = excluded.last_ingested_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err = q.QueryRowContext(ctx, query,
		dataset.Path, dataset.Pattern, dataset.Separator, string(fields), header, comments,
		dataset.ContentHash[:], dataset.RecordCount, dataset.SkippedCount, dataset.RunID,
		now, now, now).Scan(&dataset.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}

	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.LastIngestedAt = now
	dataset.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertDataset(ctx context.Context, dataset *Dataset) error {
	return upsertDatasetWithQuerier(ctx, s.querier(), dataset)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*Dataset, error) {
	var d Dataset
	var fields string
	var header, comments, runID sql.NullString
	var hash []byte
	var lastIngestedAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.Path, &d.Pattern, &d.Separator, &fields, &header, &comments, &hash,
		&d.RecordCount, &d.SkippedCount, &runID, &lastIngestedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of dataset %d: %w", d.ID, err)
	}
	if header.Valid {
		if err := json.Unmarshal([]byte(header.String), &d.Header); err != nil {
			return nil, fmt.Errorf("failed to decode header of dataset %d: %w", d.ID, err)
		}
	}
	if comments.Valid {
		if err := json.Unmarshal([]byte(comments.String), &d.Comments); err != nil {
			return nil, fmt.Errorf("failed to decode comments of dataset %d: %w", d.ID, err)
		}
	}
	copy(d.ContentHash[:], hash)
	d.RunID = runID.String
	if lastIngestedAt.Valid {
		d.LastIngestedAt = lastIngestedAt.Time
	}
	return &d, nil
}

// getDatasetWithQuerier is the internal implementation that uses a querier
func getDatasetWithQuerier(ctx context.Context, q querier, path string) (*Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE path = ?`
	d, err := scanDataset(q.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *SQLiteStorage) GetDataset(ctx context.Context, path string) (*Dataset, error) {
	return getDatasetWithQuerier(ctx, s.querier(), path)
}

// getDatasetByIDWithQuerier is the internal implementation that uses a querier
func getDatasetByIDWithQuerier(ctx context.Context, q querier, datasetID int64) (*Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = ?`
	d, err := scanDataset(q.QueryRowContext(ctx, query, datasetID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *SQLiteStorage) GetDatasetByID(ctx context.Context, datasetID int64) (*Dataset, error) {
	return getDatasetByIDWithQuerier(ctx, s.querier(), datasetID)
}

// listDatasetsWithQuerier is the internal implementation that uses a querier
func listDatasetsWithQuerier(ctx context.Context, q querier) ([]*Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY path`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

func (s *SQLiteStorage) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	return listDatasetsWithQuerier(ctx, s.querier())
}

// deleteDatasetWithQuerier is the internal implementation that uses a querier.
// Records go with it through ON DELETE CASCADE.
func deleteDatasetWithQuerier(ctx context.Context, q querier, datasetID int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", datasetID)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteDataset(ctx context.Context, datasetID int64) error {
	return deleteDatasetWithQuerier(ctx, s.querier(), datasetID)
}

// Record operations

// insertRecordsWithQuerier writes records with multi-row INSERTs of at most
// maxBatchRows rows each
func insertRecordsWithQuerier(ctx context.Context, q querier, records []*StoredRecord) error {
	for start := 0; start < len(records); start += maxBatchRows {
		end := min(start+maxBatchRows, len(records))
		batch := records[start:end]

		var sb strings.Builder
		sb.WriteString("INSERT INTO records (dataset_id, line, data, created_at) VALUES ")
		args := make([]any, 0, len(batch)*4)
		now := time.Now()
		for i, rec := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")

			data, err := json.Marshal(rec.Values)
			if err != nil {
				return fmt.Errorf("failed to encode record at line %d: %w", rec.Line, err)
			}
			args = append(args, rec.DatasetID, rec.Line, string(data), now)
		}
		sb.WriteString(" RETURNING id")

		rows, err := q.QueryContext(ctx, sb.String(), args...)
		if err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
		i := 0
		for rows.Next() && i < len(batch) {
			if err := rows.Scan(&batch[i].ID); err != nil {
				_ = rows.Close()
				return err
			}
			batch[i].CreatedAt = now
			i++
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) InsertRecord(ctx context.Context, record *StoredRecord) error {
	return insertRecordsWithQuerier(ctx, s.querier(), []*StoredRecord{record})
}

func (s *SQLiteStorage) InsertRecords(ctx context.Context, records []*StoredRecord) error {
	return insertRecordsWithQuerier(ctx, s.querier(), records)
}

// listRecordsWithQuerier is the internal implementation that uses a querier.
// A limit <= 0 returns every record from offset on.
func listRecordsWithQuerier(ctx context.Context, q querier, datasetID int64, limit, offset int) ([]*StoredRecord, error) {
	fields, err := datasetFieldsWithQuerier(ctx, q, datasetID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, dataset_id, line, data, created_at
		FROM records
		WHERE dataset_id = ?
		ORDER BY line
		LIMIT ? OFFSET ?
	`
	rows, err := q.QueryContext(ctx, query, datasetID, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var data string
		if err := rows.Scan(&rec.ID, &rec.DatasetID, &rec.Line, &data, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Values, err = decodeValues(data, fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record at line %d: %w", rec.Line, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) ListRecords(ctx context.Context, datasetID int64, limit, offset int) ([]*StoredRecord, error) {
	return listRecordsWithQuerier(ctx, s.querier(), datasetID, limit, offset)
}

// countRecordsWithQuerier is the internal implementation that uses a querier
func countRecordsWithQuerier(ctx context.Context, q querier, datasetID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE dataset_id = ?", datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) CountRecords(ctx context.Context, datasetID int64) (int, error) {
	return countRecordsWithQuerier(ctx, s.querier(), datasetID)
}

// deleteRecordsByDatasetWithQuerier is the internal implementation that uses a querier
func deleteRecordsByDatasetWithQuerier(ctx context.Context, q querier, datasetID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM records WHERE dataset_id = ?", datasetID)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteRecordsByDataset(ctx context.Context, datasetID int64) error {
	return deleteRecordsByDatasetWithQuerier(ctx, s.querier(), datasetID)
}

// getColumnsWithQuerier rebuilds the column view of a dataset in line order
func getColumnsWithQuerier(ctx context.Context, q querier, datasetID int64) (*types.Columns, error) {
	dataset, err := getDatasetByIDWithQuerier(ctx, q, datasetID)
	if err != nil {
		return nil, err
	}

	records, err := listRecordsWithQuerier(ctx, q, datasetID, 0, 0)
	if err != nil {
		return nil, err
	}

	names := dataset.FieldNames()
	cols := types.NewColumns(names)
	for _, stored := range records {
		rec := types.NewRecord(len(names))
		for _, name := range names {
			rec.Set(name, stored.Values[name])
		}
		cols.Append(rec)
	}
	return cols, nil
}

func (s *SQLiteStorage) GetColumns(ctx context.Context, datasetID int64) (*types.Columns, error) {
	return getColumnsWithQuerier(ctx, s.querier(), datasetID)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	datasets, err := listDatasetsWithQuerier(ctx, q)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Datasets:      datasets,
		DatasetsCount: len(datasets),
	}
	for _, d := range datasets {
		status.SkippedCount += d.SkippedCount
		if d.LastIngestedAt.After(status.LastIngestedAt) {
			status.LastIngestedAt = d.LastIngestedAt
		}
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&status.RecordsCount); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{DatabaseAccessible: true}
	if v, err := currentVersion(ctx, q); err == nil {
		status.Health.SchemaVersion = v.String()
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return getStatusWithQuerier(ctx, s.querier())
}

// datasetFieldsWithQuerier loads the field definitions used to restore value types
func datasetFieldsWithQuerier(ctx context.Context, q querier, datasetID int64) ([]FieldDef, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT fields FROM datasets WHERE id = ?", datasetID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var fields []FieldDef
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of dataset %d: %w", datasetID, err)
	}
	return fields, nil
}

// decodeValues restores a record's values from JSON. Numbers come back as
// int64 for int fields and float64 for every other field.
func decodeValues(data string, fields []FieldDef) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}

	for _, f := range fields {
		num, ok := values[f.Name].(json.Number)
		if !ok {
			continue
		}
		switch f.Type {
		case registry.TypeInt:
			v, err := num.Int64()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			values[f.Name] = v
		default:
			v, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			values[f.Name] = v
		}
	}
	return values, nil
}

func marshalNullable(v []string) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Transaction implementations run every statement on the transaction

func (t *sqliteTx) UpsertDataset(ctx context.Context, dataset *Dataset) error {
	return upsertDatasetWithQuerier(ctx, t.tx, dataset)
}

func (t *sqliteTx) GetDataset(ctx context.Context, path string) (*Dataset, error) {
	return getDatasetWithQuerier(ctx, t.tx, path)
}

func (t *sqliteTx) GetDatasetByID(ctx context.Context, datasetID int64) (*Dataset, error) {
	return getDatasetByIDWithQuerier(ctx, t.tx, datasetID)
}

func (t *sqliteTx) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	return listDatasetsWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) DeleteDataset(ctx context.Context, datasetID int64) error {
	return deleteDatasetWithQuerier(ctx, t.tx, datasetID)
}

func (t *sqliteTx) InsertRecord(ctx context.Context, record *StoredRecord) error {
	return insertRecordsWithQuerier(ctx, t.tx, []*StoredRecord{record})
}

func (t *sqliteTx) InsertRecords(ctx context.Context, records []*StoredRecord) error {
	return insertRecordsWithQuerier(ctx, t.tx, records)
}

func (t *sqliteTx) ListRecords(ctx context.Context, datasetID int64, limit, offset int) ([]*StoredRecord, error) {
	return listRecordsWithQuerier(ctx, t.tx, datasetID, limit, offset)
}

func (t *sqliteTx) CountRecords(ctx context.Context, datasetID int64) (int, error) {
	return countRecordsWithQuerier(ctx, t.tx, datasetID)
}

func (t *sqliteTx) DeleteRecordsByDataset(ctx context.Context, datasetID int64) error {
	return deleteRecordsByDatasetWithQuerier(ctx, t.tx, datasetID)
}

func (t *sqliteTx) GetColumns(ctx context.Context, datasetID int64) (*types.Columns, error) {
	return getColumnsWithQuerier(ctx, t.tx, datasetID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatusWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
