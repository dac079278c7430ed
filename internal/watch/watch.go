package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/tabparse/internal/ingest"
	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/logging"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero
const DefaultDebounce = 500 * time.Millisecond

// Config controls a watch run
type Config struct {
	Debounce time.Duration
	Ingest   *ingest.Config
	// OnRun, if set, is called after every triggered ingestion
	OnRun func(job string, stats *ingest.Statistics, err error)
}

// jobQueue holds job indexes waiting to run, each at most once
type jobQueue struct {
	ch     chan int
	queued []atomic.Bool
}

func newJobQueue(n int) *jobQueue {
	return &jobQueue{ch: make(chan int, n), queued: make([]atomic.Bool, n)}
}

// push queues idx unless it is already waiting. The channel holds one slot
// per job, so the send never blocks.
func (q *jobQueue) push(idx int) bool {
	if !q.queued[idx].CompareAndSwap(false, true) {
		return false
	}
	q.ch <- idx
	return true
}

// done marks idx as taken off the queue so later changes queue it again
func (q *jobQueue) done(idx int) {
	q.queued[idx].Store(false)
}

// Watcher re-ingests jobs when their files change
type Watcher struct {
	ingester *ingest.Ingester
	logger   *slog.Logger
}

// New creates a Watcher
func New(ing *ingest.Ingester, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{ingester: ing, logger: logger.With(logging.Component("watch"))}
}

// Run watches the directories holding each job's files and re-runs the
// owning job once writes to a matching file have settled. Jobs run one at a
// time. Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, jobs []jobspec.Job, cfg Config) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	watched := make(map[string]bool)
	for i := range jobs {
		for _, dir := range jobs[i].Dirs() {
			if watched[dir] {
				continue
			}
			if err := fsw.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watched[dir] = true
		}
	}
	w.logger.Info("watching", "jobs", len(jobs), "dirs", len(watched))

	runCtx, cancel := context.WithCancel(ctx)
	pending := newJobQueue(len(jobs))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runPending(runCtx, jobs, pending, cfg)
	}()

	timers := make(map[int]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path, _ := filepath.Abs(event.Name)
			for i := range jobs {
				if !jobs[i].Owns(path) {
					continue
				}
				if t, exists := timers[i]; exists {
					t.Stop()
				}
				idx := i
				w.logger.Debug("file changed", "path", path, "job", jobs[i].Name)
				timers[i] = time.AfterFunc(cfg.Debounce, func() {
					pending.push(idx)
				})
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) runPending(ctx context.Context, jobs []jobspec.Job, pending *jobQueue, cfg Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case idx := <-pending.ch:
			// Changes arriving during the run queue the job again
			pending.done(idx)
			job := &jobs[idx]
			stats, err := w.ingester.IngestJob(ctx, job, cfg.Ingest)
			if err != nil {
				w.logger.Error("ingest failed", "job", job.Name, logging.Error(err))
			}
			if cfg.OnRun != nil {
				cfg.OnRun(job.Name, stats, err)
			}
		}
	}
}
