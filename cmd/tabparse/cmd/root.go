package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/config"
	"github.com/dshills/tabparse/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app carries the settings resolved before any subcommand runs
type app struct {
	dbPath    string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the tabparse command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tabparse",
		Short: "Parse delimited text files with typed line patterns",
		Long: `tabparse reads line-oriented text files whose lines follow a pattern
such as "$name:str|$age:int" and turns them into typed records.

Commands:
  compile  - check a pattern and list its fields
  parse    - print a file's records as JSON
  ingest   - store records in the local database
  status   - show what has been ingested
  serve    - run the MCP server on stdio`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Database path (default: $TABPARSE_DB_PATH or "+config.DefaultDBPath+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newCompileCommand(),
		newParseCommand(a),
		newIngestCommand(a),
		newStatusCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree, printing any error to stderr
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root, err)
		return err
	}
	return nil
}

// setup loads the environment config and applies flag overrides
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStorage opens the configured database
func (a *app) openStorage() (storage.Storage, error) {
	path, err := a.cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	a.logger.Debug("database opened", "path", path, "driver", storage.DriverName)
	return store, nil
}

func printError(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}
