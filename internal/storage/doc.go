// Package storage provides SQLite-based persistence for parsed datasets.
//
// The storage layer manages:
//   - Datasets: one row per ingested file with its pattern, field types,
//     header, comments and SHA-256 content hash
//   - Records: one row per decoded line, values stored as a JSON object
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.tabparse/tabparse.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	dataset := &storage.Dataset{Path: path, Pattern: src, Fields: fields, ContentHash: hash}
//	if err := db.UpsertDataset(ctx, dataset); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Ingestion replaces a file's records atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertDataset(ctx, dataset)
//	_ = tx.DeleteRecordsByDataset(ctx, dataset.ID)
//	_ = tx.InsertRecords(ctx, records)
//
//	return tx.Commit()
//
// # Reading Back
//
// GetColumns rebuilds the column view of a dataset in line order. Values
// of int fields come back as int64 and other numbers as float64.
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite
//   - No C compiler needed
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//     CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// # Migrations
//
// Schema versions are semver strings recorded in schema_version and applied
// in order by NewSQLiteStorage.
package storage
