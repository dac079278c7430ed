package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tabparse/internal/ingest"
	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/storage"
)

func TestRun_ReingestsOnWrite(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	jobs := []jobspec.Job{{
		Name:    "nums",
		Paths:   []string{filepath.Join(dir, "*.tsv")},
		Pattern: "$a:int|$b:int",
	}}

	var mu sync.Mutex
	var runs []*ingest.Statistics
	var errs []error
	cfg := Config{
		Debounce: 20 * time.Millisecond,
		OnRun: func(job string, stats *ingest.Statistics, err error) {
			assert.Equal(t, "nums", job)
			mu.Lock()
			runs = append(runs, stats)
			errs = append(errs, err)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := New(ingest.New(store), nil)
	go func() { done <- w.Run(ctx, jobs, cfg) }()

	// Give the watcher time to register its directories
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "a.tsv")
	require.NoError(t, os.WriteFile(path, []byte("1\t2\n3\t4\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	require.Eventually(t, func() bool {
		dataset, err := store.GetDataset(context.Background(), path)
		return err == nil && dataset.RecordCount == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, runs)
	require.NoError(t, errs[0])
	assert.Equal(t, 1, runs[0].FilesIngested)
}

func TestRun_BadDirectory(t *testing.T) {
	w := New(nil, nil)
	jobs := []jobspec.Job{{
		Name:    "missing",
		Paths:   []string{filepath.Join(t.TempDir(), "gone", "*.tsv")},
		Pattern: "$a:int",
	}}
	err := w.Run(context.Background(), jobs, Config{})
	assert.Error(t, err)
}

func TestJobQueue_OneEntryPerJob(t *testing.T) {
	q := newJobQueue(2)

	assert.True(t, q.push(0))
	assert.False(t, q.push(0), "job 0 is already queued")
	assert.True(t, q.push(1), "another job still gets a slot")

	assert.Equal(t, 0, <-q.ch)
	q.done(0)
	assert.True(t, q.push(0), "job 0 can queue again once taken")

	assert.Equal(t, 1, <-q.ch)
	assert.Equal(t, 0, <-q.ch)
	assert.Empty(t, q.ch)
}

func TestJobQueue_ConcurrentPushNeverBlocks(t *testing.T) {
	const jobs = 8
	q := newJobQueue(jobs)

	var wg sync.WaitGroup
	for i := 0; i < jobs*4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			q.push(idx % jobs)
		}(i)
	}
	wg.Wait()

	require.Len(t, q.ch, jobs)
	seen := make(map[int]bool)
	for i := 0; i < jobs; i++ {
		idx := <-q.ch
		assert.False(t, seen[idx], "job %d queued twice", idx)
		seen[idx] = true
	}
}
