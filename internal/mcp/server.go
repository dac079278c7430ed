package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/tabparse/internal/config"
	"github.com/dshills/tabparse/internal/ingest"
	"github.com/dshills/tabparse/internal/logging"
	"github.com/dshills/tabparse/internal/storage"
	"github.com/dshills/tabparse/pkg/pattern"
)

const (
	// ServerName is the MCP server name
	ServerName = "tabparse"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	ingester *ingest.Ingester
	cache    *pattern.Cache
	lock     ingest.Lock
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*serverOptions)

type serverOptions struct {
	logger    *slog.Logger
	cacheSize int
}

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = logger }
}

// WithCacheSize sets how many compiled patterns are kept
func WithCacheSize(n int) Option {
	return func(o *serverOptions) { o.cacheSize = n }
}

// NewServer creates a new MCP server instance backed by the database at
// dbPath. An empty path uses the default location.
func NewServer(dbPath string, opts ...Option) (*Server, error) {
	o := serverOptions{cacheSize: pattern.DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	dbFile, err := (&config.Config{DBPath: dbPath}).ResolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Compiled patterns are shared by the parse and ingest tools
	cache := pattern.NewCache(o.cacheSize, nil)
	logger := o.logger.With(logging.Component("mcp"))

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		ingester: ingest.New(store, ingest.WithCache(cache), ingest.WithLogger(o.logger)),
		cache:    cache,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.logger.Info("serving on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// Close releases the database
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(compilePatternTool(), s.handleCompilePattern)
	s.mcp.AddTool(parseFileTool(), s.handleParseFile)
	s.mcp.AddTool(ingestFileTool(), s.handleIngestFile)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
