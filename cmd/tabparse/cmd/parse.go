package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/logging"
	"github.com/dshills/tabparse/pkg/fileparser"
	"github.com/dshills/tabparse/pkg/types"
)

func newParseCommand(a *app) *cobra.Command {
	var (
		lf      lineFlags
		columns bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Print a file's records as JSON",
		Long: `Parses FILE with the line pattern and prints one JSON object per record,
keys in pattern order. With --columns the whole file is collected and printed
as a single object of header, comments and column arrays.

Under --on-error abort the first bad line stops the command. Under skip bad
lines are reported on stderr and parsing continues.`,
		Example: `  tabparse parse data.tsv -p '$name:str|$age:int' --header
  tabparse parse data.csv -p '$x:float|$y:float' --sep comma --columns`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := lf.job(cmd, "parse", args)
			if err := job.Validate(); err != nil {
				return err
			}
			opts, err := job.ParserOptions()
			if err != nil {
				return err
			}
			opts = append(opts, fileparser.WithLogger(a.logger))

			p, err := fileparser.Open(args[0], job.Pattern, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if columns {
				return printColumns(cmd.OutOrStdout(), p, a)
			}
			return printRecords(cmd, p, a, limit)
		},
	}

	lf.bind(cmd)
	cmd.Flags().BoolVar(&columns, "columns", false, "Print one object of column arrays instead of JSON lines")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many records (0 for all)")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}

func printRecords(cmd *cobra.Command, p *fileparser.Parser, a *app, limit int) error {
	out := cmd.OutOrStdout()
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if limit > 0 && p.Count() == limit {
			return nil
		}

		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var de *types.DecodeError
			if errors.As(err, &de) && p.Policy() == fileparser.Skip {
				a.logger.Warn("skipped line", "path", p.Path(), "line", de.Line, logging.Error(de))
				continue
			}
			return err
		}

		line, err := recordJSON(rec)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return err
		}
	}
}

func printColumns(out io.Writer, p *fileparser.Parser, a *app) error {
	cols, err := p.Collect()
	if err != nil {
		return err
	}
	for _, de := range p.Skipped() {
		a.logger.Warn("skipped line", "path", p.Path(), "line", de.Line, logging.Error(de))
	}

	doc := struct {
		Path     string           `json:"path"`
		Header   []string         `json:"header,omitempty"`
		Comments []string         `json:"comments,omitempty"`
		Records  int              `json:"records"`
		Skipped  int              `json:"skipped"`
		Columns  map[string][]any `json:"columns"`
	}{
		Path:     p.Path(),
		Header:   p.Header(),
		Comments: p.Comments(),
		Records:  cols.Len(),
		Skipped:  len(p.Skipped()),
		Columns:  cols.Map(),
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// recordJSON encodes a record as a JSON object with keys in pattern order
func recordJSON(rec *types.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range rec.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, _ := rec.Get(name)
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
