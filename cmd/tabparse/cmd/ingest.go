package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/ingest"
	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/watch"
	"github.com/dshills/tabparse/pkg/pattern"
)

func newIngestCommand(a *app) *cobra.Command {
	var (
		lf        lineFlags
		jobsFile  string
		jobNames  []string
		force     bool
		workers   int
		batchSize int
		watchMode bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [FILE|GLOB...]",
		Short: "Parse files and store their records in the database",
		Long: `Parses files and stores one dataset per file with its records.

Files are given either as arguments together with --pattern, or as jobs in a
YAML or TOML file (--jobs). Files whose content is unchanged since the last
ingestion are skipped unless --force is set. With --watch the command keeps
running and re-ingests files as they change.`,
		Example: `  tabparse ingest 'data/*.tsv' -p '$name:str|$age:int' --header
  tabparse ingest --jobs jobs.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := resolveJobs(cmd, &lf, jobsFile, jobNames, args)
			if err != nil {
				return err
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ing := ingest.New(store,
				ingest.WithCache(pattern.NewCache(a.cfg.PatternCacheSize, nil)),
				ingest.WithLogger(a.logger))

			config := &ingest.Config{
				Workers:   a.cfg.Workers,
				BatchSize: a.cfg.BatchSize,
				Force:     force,
			}
			if cmd.Flags().Changed("workers") {
				config.Workers = workers
			}
			if cmd.Flags().Changed("batch-size") {
				config.BatchSize = batchSize
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			all, err := ing.IngestJobs(ctx, jobs, config)
			for _, stats := range all {
				printStatistics(out, stats)
			}
			if err != nil {
				return err
			}

			if !watchMode {
				return nil
			}

			// Later runs only pick up changed files
			config.Force = false
			w := watch.New(ing, a.logger)
			return w.Run(ctx, jobs, watch.Config{
				Debounce: a.cfg.WatchDebounce,
				Ingest:   config,
				OnRun: func(job string, stats *ingest.Statistics, err error) {
					if err == nil {
						printStatistics(out, stats)
					}
				},
			})
		},
	}

	lf.bind(cmd)
	cmd.Flags().StringVarP(&jobsFile, "jobs", "j", "", "YAML or TOML job file")
	cmd.Flags().StringSliceVar(&jobNames, "job", nil, "Run only the named jobs from --jobs")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-ingest files whose content is unchanged")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent files (default: $TABPARSE_WORKERS or CPU count)")
	cmd.Flags().IntVar(&batchSize, "batch-size", ingest.DefaultBatchSize, "Records per INSERT batch")
	cmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running and re-ingest files when they change")
	return cmd
}

// resolveJobs returns the jobs named on the command line, either from a job
// file or built from the parser flags
func resolveJobs(cmd *cobra.Command, lf *lineFlags, jobsFile string, names, args []string) ([]jobspec.Job, error) {
	if jobsFile == "" {
		if len(names) > 0 {
			return nil, errors.New("--job requires --jobs")
		}
		if len(args) == 0 {
			return nil, errors.New("no files given: pass FILE arguments with --pattern, or --jobs")
		}
		job := lf.job(cmd, "cli", args)
		if err := job.Validate(); err != nil {
			return nil, err
		}
		return []jobspec.Job{*job}, nil
	}

	if len(args) > 0 {
		return nil, errors.New("FILE arguments cannot be combined with --jobs")
	}
	file, err := jobspec.Load(jobsFile)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return file.Jobs, nil
	}

	jobs := make([]jobspec.Job, 0, len(names))
	for _, name := range names {
		job, ok := file.Job(name)
		if !ok {
			return nil, fmt.Errorf("job %q not found in %s", name, jobsFile)
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func printStatistics(out io.Writer, stats *ingest.Statistics) {
	fmt.Fprintf(out, "%s: %d ingested, %d unchanged, %d failed, %d records, %d lines skipped (%s)\n",
		stats.Job, stats.FilesIngested, stats.FilesSkipped, stats.FilesFailed,
		stats.RecordsStored, stats.LinesSkipped, stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
}
