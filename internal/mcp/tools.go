package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/tabparse/internal/ingest"
	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/internal/storage"
	"github.com/dshills/tabparse/pkg/fileparser"
	"github.com/dshills/tabparse/pkg/pattern"
	"github.com/dshills/tabparse/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeFileNotFound     = -32001 // Path does not exist or is not a regular file
	ErrorCodeIngestInProgress = -32002 // Another ingestion is already running
	ErrorCodeDecodeFailed     = -32003 // A line failed to decode under the abort policy
	ErrorCodeReadFailed       = -32004 // The file could not be read
)

// DefaultParseLimit caps parse_file output when no limit is given
const DefaultParseLimit = 1000

// handleCompilePattern handles the compile_pattern tool invocation
func (s *Server) handleCompilePattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	src, ok := args["pattern"].(string)
	if !ok || src == "" {
		return nil, requiredParam("pattern")
	}

	compiled, err := s.compile(src, getStringDefault(args, "separator", ""))
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"pattern":   compiled.Source(),
		"separator": string(compiled.Separator()),
		"fields":    describeFields(compiled),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleParseFile handles the parse_file tool invocation
func (s *Server) handleParseFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	job, err := jobFromArgs(args)
	if err != nil {
		return nil, err
	}
	path := job.Paths[0]
	if err := validateFile(path); err != nil {
		return nil, fileError(path, err)
	}

	limit := getIntDefault(args, "limit", DefaultParseLimit)
	if limit < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit cannot be negative", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	compiled, err := s.compile(job.Pattern, job.Separator)
	if err != nil {
		return nil, err
	}
	opts, err := job.ParserOptions()
	if err != nil {
		return nil, invalidParam("separator", err)
	}
	opts = append(opts, fileparser.WithCompiled(compiled), fileparser.WithLogger(s.logger))

	p, err := fileparser.Open(path, job.Pattern, opts...)
	if err != nil {
		return nil, fileError(path, err)
	}
	defer func() { _ = p.Close() }()

	cols := types.NewColumns(compiled.Names())
	skipped := make([]map[string]interface{}, 0)
	truncated := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "parse cancelled", nil)
		}
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var de *types.DecodeError
			if !errors.As(err, &de) {
				return nil, fileError(path, err)
			}
			if job.Policy() == fileparser.Abort {
				return nil, newMCPError(ErrorCodeDecodeFailed, "line failed to decode", decodeErrorData(de))
			}
			skipped = append(skipped, decodeErrorData(de))
			continue
		}
		if limit > 0 && cols.Len() == limit {
			truncated = true
			break
		}
		cols.Append(rec)
	}

	response := map[string]interface{}{
		"path":      path,
		"fields":    describeFields(compiled),
		"header":    p.Header(),
		"comments":  p.Comments(),
		"columns":   cols.Map(),
		"records":   cols.Len(),
		"truncated": truncated,
		"skipped":   skipped,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestFile handles the ingest_file tool invocation
func (s *Server) handleIngestFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	job, err := jobFromArgs(args)
	if err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		var pe *types.PatternError
		if errors.As(err, &pe) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid pattern", patternErrorData(pe))
		}
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid ingest parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIngestInProgress, "an ingestion is already running", nil)
	}
	defer s.lock.Release()

	config := &ingest.Config{
		Force: getBoolDefault(args, "force", false),
	}
	stats, err := s.ingester.IngestJob(ctx, job, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"ingested":       true,
		"run_id":         stats.RunID,
		"files_ingested": stats.FilesIngested,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"records_stored": stats.RecordsStored,
		"lines_skipped":  stats.LinesSkipped,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	if path := getStringDefault(args, "path", ""); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, invalidParam("path", err)
		}
		dataset, err := s.storage.GetDataset(ctx, abs)
		if errors.Is(err, storage.ErrNotFound) {
			response := map[string]interface{}{
				"ingested": false,
				"path":     abs,
				"message":  "File not ingested. Use the ingest_file tool to ingest it.",
			}
			return mcp.NewToolResultText(formatJSON(response)), nil
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get dataset", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response := map[string]interface{}{
			"ingested": true,
			"dataset":  describeDataset(dataset),
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	datasets := make([]map[string]interface{}, 0, len(status.Datasets))
	for _, d := range status.Datasets {
		datasets = append(datasets, describeDataset(d))
	}

	response := map[string]interface{}{
		"datasets": datasets,
		"statistics": map[string]interface{}{
			"datasets_count": status.DatasetsCount,
			"records_count":  status.RecordsCount,
			"skipped_count":  status.SkippedCount,
			"db_size_mb":     fmt.Sprintf("%.2f", status.SizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"schema_version":      status.Health.SchemaVersion,
		},
	}
	if !status.LastIngestedAt.IsZero() {
		response["last_ingested_at"] = status.LastIngestedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// compile resolves the separator and compiles through the shared cache
func (s *Server) compile(src, separator string) (*pattern.Compiled, error) {
	sep, err := jobspec.ParseSeparator(separator)
	if err != nil {
		return nil, invalidParam("separator", err)
	}
	compiled, err := s.cache.Get(src, sep)
	if err != nil {
		var pe *types.PatternError
		if errors.As(err, &pe) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid pattern", patternErrorData(pe))
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to compile pattern", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return compiled, nil
}

// jobFromArgs builds a single-path job from tool arguments
func jobFromArgs(args map[string]interface{}) (*jobspec.Job, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, requiredParam("path")
	}
	if !filepath.IsAbs(path) {
		return nil, invalidParam("path", ErrPathNotAbsolute)
	}

	src, ok := args["pattern"].(string)
	if !ok || src == "" {
		return nil, requiredParam("pattern")
	}

	onError := getStringDefault(args, "on_error", "")
	if _, ok := fileparser.ParsePolicy(onError); !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid on_error", map[string]interface{}{
			"param":   "on_error",
			"value":   onError,
			"allowed": []string{"abort", "skip"},
		})
	}

	job := &jobspec.Job{
		Name:      path,
		Paths:     []string{path},
		Pattern:   src,
		Separator: getStringDefault(args, "separator", ""),
		HasHeader: getBoolDefault(args, "has_header", false),
		OnError:   onError,
	}
	if comment, ok := args["comment"].(string); ok {
		job.Comment = &comment
	}
	return job, nil
}

func describeFields(c *pattern.Compiled) []map[string]interface{} {
	seps := c.Separators()
	fields := make([]map[string]interface{}, 0, c.Len())
	for i, f := range c.Fields() {
		field := map[string]interface{}{
			"name": f.Name,
			"type": f.Type,
		}
		if i < len(seps) {
			field["terminator"] = string(seps[i])
		}
		fields = append(fields, field)
	}
	return fields
}

func describeDataset(d *storage.Dataset) map[string]interface{} {
	return map[string]interface{}{
		"id":               d.ID,
		"path":             d.Path,
		"pattern":          d.Pattern,
		"separator":        d.Separator,
		"fields":           d.Fields,
		"header":           d.Header,
		"record_count":     d.RecordCount,
		"skipped_count":    d.SkippedCount,
		"run_id":           d.RunID,
		"last_ingested_at": d.LastIngestedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func patternErrorData(pe *types.PatternError) map[string]interface{} {
	return map[string]interface{}{
		"param":  "pattern",
		"reason": pe.Kind.Error(),
		"offset": pe.Pos,
		"name":   pe.Name,
	}
}

func decodeErrorData(de *types.DecodeError) map[string]interface{} {
	data := map[string]interface{}{
		"line":   de.Line,
		"field":  de.Field,
		"reason": de.Kind.Error(),
		"error":  de.Error(),
	}
	if errors.Is(de.Kind, types.ErrTypeMismatch) {
		data["raw"] = de.Raw
	} else {
		data["separator"] = string(de.Separator)
	}
	return data
}

// fileError maps open and read failures onto MCP errors
func fileError(path string, err error) error {
	data := map[string]interface{}{
		"path":   path,
		"reason": err.Error(),
	}
	switch {
	case errors.Is(err, types.ErrFileNotFound), errors.Is(err, ErrPathNotFound), errors.Is(err, ErrNotRegularFile):
		return newMCPError(ErrorCodeFileNotFound, "file not found", data)
	case errors.Is(err, types.ErrReadFailure):
		return newMCPError(ErrorCodeReadFailed, "failed to read file", data)
	}
	return newMCPError(ErrorCodeInternalError, "failed to parse file", data)
}

func requiredParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

func invalidParam(name string, err error) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+name, map[string]interface{}{
		"param":  name,
		"reason": err.Error(),
	})
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateFile checks that path is an existing regular file
func validateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.Mode().IsRegular() {
		return ErrNotRegularFile
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotRegularFile  = errors.New("path is not a regular file")
)
