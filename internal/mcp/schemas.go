package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var separatorProperty = map[string]interface{}{
	"type":        "string",
	"description": "Global field separator: a single character or one of tab, comma, space, pipe, semicolon",
	"default":     "tab",
}

// compilePatternTool returns the tool definition for compile_pattern
func compilePatternTool() mcp.Tool {
	return mcp.Tool{
		Name:        "compile_pattern",
		Description: "Compile a line pattern such as \"$name:str|$age:int\" and describe its fields and separators",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Line pattern: $name:type fields joined by | (global separator) or 'c (literal separator c)",
				},
				"separator": separatorProperty,
			},
			Required: []string{"pattern"},
		},
	}
}

// parseFileTool returns the tool definition for parse_file
func parseFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "parse_file",
		Description: "Parse a delimited text file with a line pattern and return its columns",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the file",
				},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Line pattern describing one data line",
				},
				"separator": separatorProperty,
				"has_header": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, the first non-comment line is a header",
					"default":     false,
				},
				"comment": map[string]interface{}{
					"type":        "string",
					"description": "Comment line prefix; empty string disables comments",
					"default":     "#",
				},
				"on_error": map[string]interface{}{
					"type":        "string",
					"description": "What to do with lines that fail to decode",
					"enum":        []string{"abort", "skip"},
					"default":     "abort",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of records to return (0 for all)",
					"default":     DefaultParseLimit,
					"minimum":     0,
				},
			},
			Required: []string{"path", "pattern"},
		},
	}
}

// ingestFileTool returns the tool definition for ingest_file
func ingestFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_file",
		Description: "Parse files matching a path or glob and store their records in the database",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute file path or glob",
				},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Line pattern describing one data line",
				},
				"separator": separatorProperty,
				"has_header": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
				"comment": map[string]interface{}{
					"type":        "string",
					"description": "Comment line prefix; empty string disables comments",
					"default":     "#",
				},
				"on_error": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"abort", "skip"},
					"default": "abort",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-ingest files whose content is unchanged",
					"default":     false,
				},
			},
			Required: []string{"path", "pattern"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report ingested datasets and database statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional absolute file path to report on a single dataset",
				},
			},
		},
	}
}
