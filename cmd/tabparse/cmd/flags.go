package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/jobspec"
)

// lineFlags are the parser settings shared by parse and ingest
type lineFlags struct {
	pattern   string
	separator string
	header    bool
	comment   string
	skipBlank bool
	onError   string
}

func (f *lineFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.pattern, "pattern", "p", "", "Line pattern, e.g. '$name:str|$age:int'")
	flags.StringVarP(&f.separator, "sep", "s", "tab", "Global separator: a character or tab, comma, space, pipe, semicolon")
	flags.BoolVar(&f.header, "header", false, "Treat the first non-comment line as a header")
	flags.StringVar(&f.comment, "comment", "#", "Comment line prefix (empty disables comments)")
	flags.BoolVar(&f.skipBlank, "skip-blank", false, "Skip empty and whitespace-only lines")
	flags.StringVar(&f.onError, "on-error", "abort", "Bad line policy: abort or skip")
}

// job builds a job over paths from the flags
func (f *lineFlags) job(cmd *cobra.Command, name string, paths []string) *jobspec.Job {
	job := &jobspec.Job{
		Name:      name,
		Paths:     paths,
		Pattern:   f.pattern,
		Separator: f.separator,
		HasHeader: f.header,
		SkipBlank: f.skipBlank,
		OnError:   f.onError,
	}
	if cmd.Flags().Changed("comment") {
		comment := f.comment
		job.Comment = &comment
	}
	return job
}
