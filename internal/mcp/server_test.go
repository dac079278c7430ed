package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func setupServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callTool(t *testing.T, handler toolHandler, args map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	if err != nil {
		return nil, err
	}
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out, nil
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestServer_Initialization(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		s := setupServer(t)
		assert.NotNil(t, s.mcp, "MCP server should be initialized")
		assert.NotNil(t, s.storage, "Storage should be initialized")
		assert.NotNil(t, s.ingester, "Ingester should be initialized")
		assert.Same(t, s.cache, s.ingester.Cache(), "pattern cache is shared")
	})

	t.Run("custom path creates directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "tabparse.db")
		s, err := NewServer(dbPath)
		require.NoError(t, err)
		defer s.Close()

		_, err = os.Stat(filepath.Dir(dbPath))
		assert.NoError(t, err)
	})
}

func TestHandleCompilePattern(t *testing.T) {
	s := setupServer(t)

	t.Run("valid pattern", func(t *testing.T) {
		out, err := callTool(t, s.handleCompilePattern, map[string]interface{}{
			"pattern":   "$name:str'-$age:int|$score:float",
			"separator": "comma",
		})
		require.NoError(t, err)
		assert.Equal(t, ",", out["separator"])

		fields := out["fields"].([]interface{})
		require.Len(t, fields, 3)
		first := fields[0].(map[string]interface{})
		assert.Equal(t, "name", first["name"])
		assert.Equal(t, "str", first["type"])
		assert.Equal(t, "-", first["terminator"])
		assert.Equal(t, ",", fields[1].(map[string]interface{})["terminator"])
		_, hasTerminator := fields[2].(map[string]interface{})["terminator"]
		assert.False(t, hasTerminator)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := callTool(t, s.handleCompilePattern, map[string]interface{}{"pattern": "$a:int|$b:date"})
		mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
		data := mcpErr.Data.(map[string]interface{})
		assert.Equal(t, "date", data["name"])
		assert.Equal(t, 10, data["offset"])
	})

	t.Run("missing pattern", func(t *testing.T) {
		_, err := callTool(t, s.handleCompilePattern, map[string]interface{}{})
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("bad separator", func(t *testing.T) {
		_, err := callTool(t, s.handleCompilePattern, map[string]interface{}{"pattern": "$a:int", "separator": "ab"})
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleParseFile(t *testing.T) {
	s := setupServer(t)
	path := writeFile(t, "# source: test\nname\tage\nann\t31\nbob\t42\ncid\t27\n")

	t.Run("columns", func(t *testing.T) {
		out, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":       path,
			"pattern":    "$name:str|$age:int",
			"has_header": true,
		})
		require.NoError(t, err)
		assert.Equal(t, float64(3), out["records"])
		assert.Equal(t, false, out["truncated"])
		assert.Equal(t, []interface{}{"name", "age"}, out["header"])
		assert.Equal(t, []interface{}{"# source: test"}, out["comments"])

		cols := out["columns"].(map[string]interface{})
		assert.Equal(t, []interface{}{"ann", "bob", "cid"}, cols["name"])
		assert.Equal(t, []interface{}{float64(31), float64(42), float64(27)}, cols["age"])
	})

	t.Run("limit", func(t *testing.T) {
		out, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":       path,
			"pattern":    "$name:str|$age:int",
			"has_header": true,
			"limit":      float64(2),
		})
		require.NoError(t, err)
		assert.Equal(t, float64(2), out["records"])
		assert.Equal(t, true, out["truncated"])
	})

	t.Run("decode error aborts", func(t *testing.T) {
		bad := writeFile(t, "1\t2\nx\t3\n")
		_, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":    bad,
			"pattern": "$a:int|$b:int",
		})
		mcpErr := requireMCPError(t, err, ErrorCodeDecodeFailed)
		data := mcpErr.Data.(map[string]interface{})
		assert.Equal(t, 2, data["line"])
		assert.Equal(t, "a", data["field"])
		assert.Equal(t, "x", data["raw"])
	})

	t.Run("decode error skipped", func(t *testing.T) {
		bad := writeFile(t, "1\t2\nx\t3\n4\t5\n")
		out, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":     bad,
			"pattern":  "$a:int|$b:int",
			"on_error": "skip",
		})
		require.NoError(t, err)
		assert.Equal(t, float64(2), out["records"])
		skipped := out["skipped"].([]interface{})
		require.Len(t, skipped, 1)
		assert.Equal(t, float64(2), skipped[0].(map[string]interface{})["line"])
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":    filepath.Join(t.TempDir(), "missing.tsv"),
			"pattern": "$a:int",
		})
		requireMCPError(t, err, ErrorCodeFileNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":    t.TempDir(),
			"pattern": "$a:int",
		})
		requireMCPError(t, err, ErrorCodeFileNotFound)
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":    "data.tsv",
			"pattern": "$a:int",
		})
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("bad policy", func(t *testing.T) {
		_, err := callTool(t, s.handleParseFile, map[string]interface{}{
			"path":     path,
			"pattern":  "$a:int",
			"on_error": "ignore",
		})
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleIngestFile(t *testing.T) {
	s := setupServer(t)
	path := writeFile(t, "1\t2\n3\t4\n")
	args := map[string]interface{}{
		"path":    path,
		"pattern": "$a:int|$b:int",
	}

	out, err := callTool(t, s.handleIngestFile, args)
	require.NoError(t, err)
	assert.Equal(t, true, out["ingested"])
	assert.Equal(t, float64(1), out["files_ingested"])
	assert.Equal(t, float64(2), out["records_stored"])
	assert.NotEmpty(t, out["run_id"])

	// Unchanged content is skipped unless forced
	out, err = callTool(t, s.handleIngestFile, args)
	require.NoError(t, err)
	assert.Equal(t, float64(0), out["files_ingested"])
	assert.Equal(t, float64(1), out["files_skipped"])

	args["force"] = true
	out, err = callTool(t, s.handleIngestFile, args)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["files_ingested"])

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := callTool(t, s.handleIngestFile, map[string]interface{}{
			"path":    path,
			"pattern": "$a",
		})
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("busy", func(t *testing.T) {
		require.True(t, s.lock.TryAcquire())
		defer s.lock.Release()
		_, err := callTool(t, s.handleIngestFile, map[string]interface{}{
			"path":    path,
			"pattern": "$a:int|$b:int",
		})
		requireMCPError(t, err, ErrorCodeIngestInProgress)
	})
}

func TestHandleGetStatus(t *testing.T) {
	s := setupServer(t)
	path := writeFile(t, "1\t2\n3\t4\n")

	out, err := callTool(t, s.handleGetStatus, map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.Equal(t, false, out["ingested"])

	_, err = callTool(t, s.handleIngestFile, map[string]interface{}{
		"path":    path,
		"pattern": "$a:int|$b:int",
	})
	require.NoError(t, err)

	out, err = callTool(t, s.handleGetStatus, map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.Equal(t, true, out["ingested"])
	dataset := out["dataset"].(map[string]interface{})
	assert.Equal(t, float64(2), dataset["record_count"])

	out, err = callTool(t, s.handleGetStatus, map[string]interface{}{})
	require.NoError(t, err)
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["datasets_count"])
	assert.Equal(t, float64(2), stats["records_count"])
	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])
	require.Len(t, out["datasets"], 1)
}
