package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/storage"
	"github.com/dshills/tabparse/pkg/fileparser"
	"github.com/dshills/tabparse/pkg/pattern"
	"github.com/dshills/tabparse/pkg/types"
)

// DefaultBatchSize is the number of records written per INSERT batch
const DefaultBatchSize = 500

// Ingester coordinates the ingestion pipeline: expand -> parse -> store
type Ingester struct {
	storage storage.Storage
	cache   *pattern.Cache
	logger  *slog.Logger
}

// Option configures an Ingester
type Option func(*Ingester)

// WithCache shares a compiled pattern cache
func WithCache(cache *pattern.Cache) Option {
	return func(ing *Ingester) { ing.cache = cache }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(ing *Ingester) { ing.logger = logger }
}

// Config contains configuration for one ingestion run
type Config struct {
	Workers   int  // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize int  // Records per INSERT batch (default: 500)
	Force     bool // Re-ingest files whose content hash is unchanged
}

// Statistics contains statistics about an ingestion run
type Statistics struct {
	RunID         string
	Job           string
	FilesIngested int
	FilesSkipped  int // Unchanged since the last run
	FilesFailed   int
	RecordsStored int
	LinesSkipped  int // Bad lines dropped under the skip policy
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Ingester instance
func New(store storage.Storage, opts ...Option) *Ingester {
	ing := &Ingester{storage: store}
	for _, opt := range opts {
		opt(ing)
	}
	if ing.cache == nil {
		ing.cache = pattern.NewCache(pattern.DefaultCacheSize, nil)
	}
	if ing.logger == nil {
		ing.logger = slog.New(slog.DiscardHandler)
	}
	return ing
}

// Cache returns the compiled pattern cache
func (ing *Ingester) Cache() *pattern.Cache {
	return ing.cache
}

// IngestJob parses every file matched by the job and stores its records.
// A pattern that does not compile fails the job before any file is read;
// a file that fails is counted and the others continue.
func (ing *Ingester) IngestJob(ctx context.Context, job *jobspec.Job, config *Config) (*Statistics, error) {
	config = withDefaults(config)
	startTime := time.Now()

	sep, err := job.SeparatorRune()
	if err != nil {
		return nil, fmt.Errorf("invalid separator for job %s: %w", job.Name, err)
	}
	compiled, err := ing.cache.Get(job.Pattern, sep)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern for job %s: %w", job.Name, err)
	}

	files, err := job.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	stats := &Statistics{
		RunID:         uuid.NewString(),
		Job:           job.Name,
		ErrorMessages: make([]string, 0),
	}
	logger := ing.logger.With("job", job.Name, "run_id", stats.RunID)
	logger.Info("ingest started", "files", len(files), "workers", config.Workers)

	if err := ing.ingestFiles(ctx, logger, job, compiled, files, config, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	logger.Info("ingest finished",
		"ingested", stats.FilesIngested,
		"unchanged", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"records", stats.RecordsStored,
		"duration", stats.Duration)
	return stats, nil
}

// IngestJobs runs jobs one after another
func (ing *Ingester) IngestJobs(ctx context.Context, jobs []jobspec.Job, config *Config) ([]*Statistics, error) {
	all := make([]*Statistics, 0, len(jobs))
	for i := range jobs {
		stats, err := ing.IngestJob(ctx, &jobs[i], config)
		if err != nil {
			return all, err
		}
		all = append(all, stats)
	}
	return all, nil
}

func withDefaults(config *Config) *Config {
	c := Config{}
	if config != nil {
		c = *config
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return &c
}

// ingestFiles ingests files concurrently, one transaction per file
func (ing *Ingester) ingestFiles(ctx context.Context, logger *slog.Logger, job *jobspec.Job,
	compiled *pattern.Compiled, files []string, config *Config, stats *Statistics) error {

	semaphore := make(chan struct{}, config.Workers)

	var (
		ingested     int32
		unchanged    int32
		failed       int32
		records      int64
		linesSkipped int64
	)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for _, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			res, err := ing.ingestFile(gctx, logger, job, compiled, path, stats.RunID, config)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				atomic.AddInt32(&failed, 1)
				logger.Warn("file failed", "path", path, "error", err)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}

			if res.unchanged {
				atomic.AddInt32(&unchanged, 1)
				return nil
			}
			atomic.AddInt32(&ingested, 1)
			atomic.AddInt64(&records, int64(res.records))
			atomic.AddInt64(&linesSkipped, int64(res.skipped))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.FilesIngested = int(ingested)
	stats.FilesSkipped = int(unchanged)
	stats.FilesFailed = int(failed)
	stats.RecordsStored = int(records)
	stats.LinesSkipped = int(linesSkipped)
	return nil
}

type fileResult struct {
	unchanged bool
	records   int
	skipped   int
}

// ingestFile replaces the stored records of one file inside a transaction
func (ing *Ingester) ingestFile(ctx context.Context, logger *slog.Logger, job *jobspec.Job,
	compiled *pattern.Compiled, path, runID string, config *Config) (*fileResult, error) {

	hash, err := computeFileHash(path)
	if err != nil {
		return nil, err
	}

	if !config.Force {
		shouldSkip, err := ing.checkFileChanged(ctx, path, hash, compiled)
		if err != nil {
			return nil, err
		}
		if shouldSkip {
			logger.Debug("file unchanged", "path", path)
			return &fileResult{unchanged: true}, nil
		}
	}

	opts, err := job.ParserOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, fileparser.WithCompiled(compiled), fileparser.WithLogger(logger))

	p, err := fileparser.Open(path, job.Pattern, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = p.Close() }()

	tx, err := ing.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dataset := &storage.Dataset{
		Path:        path,
		Pattern:     compiled.Source(),
		Separator:   string(compiled.Separator()),
		Fields:      fieldDefs(compiled),
		Header:      p.Header(),
		ContentHash: hash,
		RunID:       runID,
	}
	if err := tx.UpsertDataset(ctx, dataset); err != nil {
		return nil, err
	}
	if err := tx.DeleteRecordsByDataset(ctx, dataset.ID); err != nil {
		return nil, err
	}

	res := &fileResult{}
	batch := make([]*storage.StoredRecord, 0, config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := tx.InsertRecords(ctx, batch); err != nil {
			return err
		}
		res.records += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var de *types.DecodeError
			if errors.As(err, &de) && job.Policy() == fileparser.Skip {
				res.skipped++
				logger.Debug("skipped line", "path", path, "line", de.Line, "error", de)
				continue
			}
			return nil, err
		}

		batch = append(batch, &storage.StoredRecord{
			DatasetID: dataset.ID,
			Line:      p.Line(),
			Values:    rec.Map(),
		})
		if len(batch) >= config.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	dataset.RecordCount = res.records
	dataset.SkippedCount = res.skipped
	dataset.Comments = p.Comments()
	if err := tx.UpsertDataset(ctx, dataset); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("file ingested", "path", path, "records", res.records, "skipped", res.skipped)
	return res, nil
}

// checkFileChanged reports whether a stored dataset already has this content
// decoded with the same pattern and separator
func (ing *Ingester) checkFileChanged(ctx context.Context, path string, hash [32]byte, compiled *pattern.Compiled) (bool, error) {
	existing, err := ing.storage.GetDataset(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ContentHash == hash &&
		existing.Pattern == compiled.Source() &&
		existing.Separator == string(compiled.Separator()), nil
}

func fieldDefs(compiled *pattern.Compiled) []storage.FieldDef {
	fields := compiled.Fields()
	defs := make([]storage.FieldDef, len(fields))
	for i, f := range fields {
		defs[i] = storage.FieldDef{Name: f.Name, Type: f.Type}
	}
	return defs
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))
	return result, nil
}
