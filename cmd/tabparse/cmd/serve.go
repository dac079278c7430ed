package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/mcp"
	"github.com/dshills/tabparse/internal/storage"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Starts the Model Context Protocol server. Requests are read from stdin and
responses written to stdout, so all logging goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger
			logger.Info("tabparse MCP server starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName)

			dbPath, err := a.cfg.ResolveDBPath()
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(dbPath,
				mcp.WithLogger(logger),
				mcp.WithCacheSize(a.cfg.PatternCacheSize))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			errChan := make(chan error, 1)
			go func() {
				logger.Info("MCP server ready, listening on stdio")
				errChan <- server.Serve(ctx)
			}()

			// Wait for shutdown signal or error
			select {
			case <-ctx.Done():
				logger.Info("shutting down", "reason", context.Cause(ctx))
				return server.Close()
			case err := <-errChan:
				if err != nil {
					return err
				}
			}

			logger.Info("server stopped")
			return nil
		},
	}
}
