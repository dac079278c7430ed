package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/storage"
)

func newStatusCommand(a *app) *cobra.Command {
	var (
		asJSON  bool
		records int
	)

	cmd := &cobra.Command{
		Use:   "status [FILE]",
		Short: "Show ingested datasets and database statistics",
		Long: `Without arguments, lists every ingested file with its record counts.
With FILE, shows that dataset in detail; --records N also prints its first N
stored records as JSON lines.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				dataset, err := store.GetDataset(ctx, path)
				if err != nil {
					return fmt.Errorf("dataset %s: %w", path, err)
				}
				if asJSON {
					return writeJSON(out, dataset)
				}
				printDataset(out, dataset)

				if records > 0 {
					stored, err := store.ListRecords(ctx, dataset.ID, records, 0)
					if err != nil {
						return err
					}
					for _, rec := range stored {
						line, err := json.Marshal(rec.Values)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "%d\t%s\n", rec.Line, line)
					}
				}
				return nil
			}

			status, err := store.GetStatus(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, status)
			}

			fmt.Fprintln(out, "tabparse Status")
			fmt.Fprintln(out, "===============")
			fmt.Fprintf(out, "Datasets:        %d\n", status.DatasetsCount)
			fmt.Fprintf(out, "Records:         %d\n", status.RecordsCount)
			fmt.Fprintf(out, "Skipped lines:   %d\n", status.SkippedCount)
			fmt.Fprintf(out, "Database size:   %.2f MB\n", status.SizeMB)
			fmt.Fprintf(out, "Schema version:  %s\n", status.Health.SchemaVersion)
			if !status.LastIngestedAt.IsZero() {
				fmt.Fprintf(out, "Last ingested:   %s\n", status.LastIngestedAt.Format("2006-01-02 15:04:05"))
			}
			if len(status.Datasets) > 0 {
				fmt.Fprintln(out)
				for _, d := range status.Datasets {
					fmt.Fprintf(out, "  %-50s %8d records %6d skipped\n", d.Path, d.RecordCount, d.SkippedCount)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().IntVarP(&records, "records", "n", 0, "With FILE, print the first N stored records")
	return cmd
}

func printDataset(out io.Writer, d *storage.Dataset) {
	fmt.Fprintf(out, "Path:           %s\n", d.Path)
	fmt.Fprintf(out, "Pattern:        %s\n", d.Pattern)
	fmt.Fprintf(out, "Separator:      %q\n", d.Separator)
	fmt.Fprintf(out, "Fields:         %s\n", strings.Join(d.FieldNames(), ", "))
	if d.Header != nil {
		fmt.Fprintf(out, "Header:         %s\n", strings.Join(d.Header, ", "))
	}
	fmt.Fprintf(out, "Records:        %d\n", d.RecordCount)
	fmt.Fprintf(out, "Skipped lines:  %d\n", d.SkippedCount)
	fmt.Fprintf(out, "Run:            %s\n", d.RunID)
	fmt.Fprintf(out, "Last ingested:  %s\n", d.LastIngestedAt.Format("2006-01-02 15:04:05"))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
