package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/storage"
	"github.com/dshills/tabparse/pkg/types"
)

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestComputeFileHash(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "a.tsv", "1\t2\n")
	b := createTestFile(t, dir, "b.tsv", "1\t2\n")
	c := createTestFile(t, dir, "c.tsv", "1\t3\n")

	hashA, err := computeFileHash(a)
	require.NoError(t, err)
	hashB, err := computeFileHash(b)
	require.NoError(t, err)
	hashC, err := computeFileHash(c)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.NotEqual(t, hashA, hashC)

	_, err = computeFileHash(filepath.Join(dir, "missing.tsv"))
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	c := withDefaults(nil)
	assert.Greater(t, c.Workers, 0)
	assert.Equal(t, DefaultBatchSize, c.BatchSize)

	in := &Config{Workers: 3, BatchSize: 7, Force: true}
	c = withDefaults(in)
	assert.Equal(t, *in, *c)
	assert.NotSame(t, in, c)
}

// IngestTestSuite exercises the pipeline against in-memory storage
type IngestTestSuite struct {
	suite.Suite
	storage  *storage.SQLiteStorage
	ingester *Ingester
	dir      string
	ctx      context.Context
}

// SetupTest runs before each test
func (s *IngestTestSuite) SetupTest() {
	s.ctx = context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.storage = store
	s.ingester = New(s.storage)
	s.dir = s.T().TempDir()
}

// TearDownTest runs after each test
func (s *IngestTestSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *IngestTestSuite) job(onError string) *jobspec.Job {
	return &jobspec.Job{
		Name:      "measurements",
		Paths:     []string{filepath.Join(s.dir, "*.tsv")},
		Pattern:   "$val:float|$val2:int|$val3:str",
		HasHeader: true,
		OnError:   onError,
	}
}

func (s *IngestTestSuite) TestIngestJob() {
	createTestFile(s.T(), s.dir, "a.tsv", "# first\nv\tv2\tv3\n1.0\t2\tx\n3.5\t4\ty\n")
	createTestFile(s.T(), s.dir, "b.tsv", "v\tv2\tv3\n5.0\t6\tz\n")
	createTestFile(s.T(), s.dir, "ignored.txt", "not\tmatched\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job(""), &Config{Workers: 2})
	s.Require().NoError(err)
	s.Equal(2, stats.FilesIngested)
	s.Equal(0, stats.FilesFailed)
	s.Equal(3, stats.RecordsStored)
	s.NotEmpty(stats.RunID)
	s.Equal("measurements", stats.Job)

	dataset, err := s.storage.GetDataset(s.ctx, filepath.Join(s.dir, "a.tsv"))
	s.Require().NoError(err)
	s.Equal(2, dataset.RecordCount)
	s.Equal([]string{"v", "v2", "v3"}, dataset.Header)
	s.Equal([]string{"# first"}, dataset.Comments)
	s.Equal(stats.RunID, dataset.RunID)
	s.Equal("\t", dataset.Separator)

	cols, err := s.storage.GetColumns(s.ctx, dataset.ID)
	s.Require().NoError(err)
	val, _ := cols.Get("val")
	s.Equal([]any{1.0, 3.5}, val)
	val2, _ := cols.Get("val2")
	s.Equal([]any{int64(2), int64(4)}, val2)

	records, err := s.storage.ListRecords(s.ctx, dataset.ID, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(3, records[0].Line)
	s.Equal(4, records[1].Line)
}

func (s *IngestTestSuite) TestIncremental() {
	path := createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job(""), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)

	stats, err = s.ingester.IngestJob(s.ctx, s.job(""), nil)
	s.Require().NoError(err)
	s.Equal(0, stats.FilesIngested)
	s.Equal(1, stats.FilesSkipped)

	stats, err = s.ingester.IngestJob(s.ctx, s.job(""), &Config{Force: true})
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)

	createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n7.0\t8\tw\n")
	stats, err = s.ingester.IngestJob(s.ctx, s.job(""), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	count, err := s.storage.CountRecords(s.ctx, dataset.ID)
	s.Require().NoError(err)
	s.Equal(2, count, "old records are replaced, not appended")
}

func (s *IngestTestSuite) TestPatternChangeReingests() {
	path := createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job(""), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)

	job := s.job("")
	job.Pattern = "$a:str|$b:str|$c:str"
	stats, err = s.ingester.IngestJob(s.ctx, job, nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)
	s.Equal(0, stats.FilesSkipped)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(job.Pattern, dataset.Pattern)
	s.Equal([]string{"a", "b", "c"}, dataset.FieldNames())

	records, err := s.storage.ListRecords(s.ctx, dataset.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(map[string]any{"a": "1.0", "b": "2", "c": "x"}, records[0].Values)

	stats, err = s.ingester.IngestJob(s.ctx, job, nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesSkipped, "same content and pattern is unchanged")
}

func (s *IngestTestSuite) TestSeparatorChangeReingests() {
	path := createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n")

	job := s.job("")
	job.Pattern = "$line:str"
	stats, err := s.ingester.IngestJob(s.ctx, job, nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)

	job.Separator = "comma"
	stats, err = s.ingester.IngestJob(s.ctx, job, nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)
	s.Equal(0, stats.FilesSkipped)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(",", dataset.Separator)
}

func (s *IngestTestSuite) TestSkipPolicyDropsNonFiniteFloats() {
	path := createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\nNaN\t1\tx\n+Inf\t2\ty\n1.5\t3\tz\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job("skip"), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)
	s.Equal(1, stats.RecordsStored)
	s.Equal(2, stats.LinesSkipped)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	records, err := s.storage.ListRecords(s.ctx, dataset.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(1.5, records[0].Values["val"])
}

func (s *IngestTestSuite) TestAbortRollsBackBadFile() {
	good := createTestFile(s.T(), s.dir, "good.tsv", "v\tv2\tv3\n1.0\t2\tx\n")
	bad := createTestFile(s.T(), s.dir, "bad.tsv", "v\tv2\tv3\n1.0\t2\tx\n1.0\tnope\tx\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job("abort"), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)
	s.Equal(1, stats.FilesFailed)
	s.Require().Len(stats.ErrorMessages, 1)
	s.Contains(stats.ErrorMessages[0], "bad.tsv")

	_, err = s.storage.GetDataset(s.ctx, good)
	s.NoError(err)
	_, err = s.storage.GetDataset(s.ctx, bad)
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *IngestTestSuite) TestSkipPolicy() {
	path := createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\nbad\t2\tx\n1.0\t2\n3.0\t4\ty\n")

	stats, err := s.ingester.IngestJob(s.ctx, s.job("skip"), nil)
	s.Require().NoError(err)
	s.Equal(1, stats.FilesIngested)
	s.Equal(2, stats.RecordsStored)
	s.Equal(2, stats.LinesSkipped)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(2, dataset.SkippedCount)
}

func (s *IngestTestSuite) TestPatternErrorFailsJob() {
	createTestFile(s.T(), s.dir, "a.tsv", "1\n")
	job := s.job("")
	job.Pattern = "$val:vroom"

	_, err := s.ingester.IngestJob(s.ctx, job, nil)
	s.ErrorIs(err, types.ErrUnknownType)

	datasets, err := s.storage.ListDatasets(s.ctx)
	s.Require().NoError(err)
	s.Empty(datasets)
}

func (s *IngestTestSuite) TestBatching() {
	var b strings.Builder
	b.WriteString("v\tv2\tv3\n")
	for i := 0; i < 23; i++ {
		fmt.Fprintf(&b, "%d.5\t%d\trow%d\n", i, i, i)
	}
	path := createTestFile(s.T(), s.dir, "a.tsv", b.String())

	stats, err := s.ingester.IngestJob(s.ctx, s.job(""), &Config{BatchSize: 5})
	s.Require().NoError(err)
	s.Equal(23, stats.RecordsStored)

	dataset, err := s.storage.GetDataset(s.ctx, path)
	s.Require().NoError(err)
	cols, err := s.storage.GetColumns(s.ctx, dataset.ID)
	s.Require().NoError(err)
	s.Equal(23, cols.Len())
	v2, _ := cols.Get("val2")
	s.Equal(int64(22), v2[22])
}

func (s *IngestTestSuite) TestCancelledContext() {
	createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n")
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.ingester.IngestJob(ctx, s.job(""), nil)
	s.ErrorIs(err, context.Canceled)
}

func (s *IngestTestSuite) TestIngestJobs() {
	createTestFile(s.T(), s.dir, "a.tsv", "v\tv2\tv3\n1.0\t2\tx\n")
	createTestFile(s.T(), s.dir, "tags.csv", "red,1\nblue,2\n")

	jobs := []jobspec.Job{
		*s.job(""),
		{
			Name:      "tags",
			Paths:     []string{filepath.Join(s.dir, "*.csv")},
			Pattern:   "$tag:str|$count:int",
			Separator: "comma",
		},
	}
	all, err := s.ingester.IngestJobs(s.ctx, jobs, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(1, all[0].RecordsStored)
	s.Equal(2, all[1].RecordsStored)
	s.NotEqual(all[0].RunID, all[1].RunID)
	s.Equal(2, s.ingester.Cache().Len())
}

func TestIngestSuite(t *testing.T) {
	suite.Run(t, new(IngestTestSuite))
}
