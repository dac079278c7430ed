// Package ingest parses the files of a job and stores their records.
//
// # Basic Usage
//
//	ing := ingest.New(store, ingest.WithLogger(logger))
//
//	stats, err := ing.IngestJob(ctx, &job, &ingest.Config{Workers: 4})
//	fmt.Printf("ingested %d files, %d records\n", stats.FilesIngested, stats.RecordsStored)
//
// # Pipeline
//
//  1. Compile: the job's pattern comes from a shared pattern.Cache; a pattern
//     that does not compile fails the job before any file is read
//  2. Discover: the job's globs are expanded to absolute file paths
//  3. Incremental decision: a file whose SHA-256 hash matches its stored
//     dataset is skipped unless Config.Force is set
//  4. Parse and store: one fileparser.Parser and one transaction per file;
//     old records are replaced, new ones inserted in batches
//
// Files are processed concurrently by Config.Workers goroutines. A file
// that fails (unreadable, or a bad line under the abort policy) is rolled
// back and counted in Statistics.FilesFailed; the rest of the job continues.
//
// Every call to IngestJob gets a fresh run id, stored on each dataset it
// writes.
package ingest
