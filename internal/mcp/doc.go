// Package mcp implements the Model Context Protocol (MCP) server for tabparse.
//
// The MCP server exposes four tools to AI assistants:
//   - compile_pattern: Check a line pattern and list its fields
//   - parse_file: Parse a delimited file and return its columns
//   - ingest_file: Parse files and store their records in the database
//   - get_status: Report ingested datasets and database statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command and reads requests from
// stdin, writing responses to stdout. Logs go to stderr.
//
//	tabparse serve
//
// # Tool: compile_pattern
//
//	Request:
//	{
//	  "name": "compile_pattern",
//	  "arguments": {
//	    "pattern": "$host:str':$port:int|$latency:float",
//	    "separator": "tab"
//	  }
//	}
//
//	Response:
//	{
//	  "pattern": "$host:str':$port:int|$latency:float",
//	  "separator": "\t",
//	  "fields": [
//	    {"name": "host", "type": "str", "terminator": ":"},
//	    {"name": "port", "type": "int", "terminator": "\t"},
//	    {"name": "latency", "type": "float"}
//	  ]
//	}
//
// # Tool: parse_file
//
//	Request:
//	{
//	  "name": "parse_file",
//	  "arguments": {
//	    "path": "/data/latency.tsv",
//	    "pattern": "$host:str':$port:int|$latency:float",
//	    "has_header": true,
//	    "on_error": "skip",
//	    "limit": 100
//	  }
//	}
//
//	Response:
//	{
//	  "header": ["endpoint", "latency"],
//	  "comments": ["# collected 2024-03-01"],
//	  "columns": {"host": [...], "port": [...], "latency": [...]},
//	  "records": 100,
//	  "truncated": true,
//	  "skipped": [{"line": 7, "field": "port", "raw": "http", ...}]
//	}
//
// Under the abort policy (the default) the first bad line fails the call
// with ErrorCodeDecodeFailed and its line, field and raw text in the error
// data.
//
// # Tool: ingest_file
//
// Takes the parse_file arguments (path may be a glob) plus force. Files
// whose content hash is unchanged since the last ingestion are skipped
// unless force is set. Only one ingestion runs at a time; a second call
// while one is running fails with ErrorCodeIngestInProgress.
//
// # Tool: get_status
//
// With no arguments, lists every dataset with database statistics. With a
// path, reports that one file or "ingested": false.
//
// # Error Handling
//
// Errors are returned as MCPError values with JSON-RPC codes:
//   - -32602: Invalid parameters, including patterns that fail to compile
//   - -32603: Internal error
//   - -32001: File not found
//   - -32002: Ingestion already running
//   - -32003: Line failed to decode
//   - -32004: File could not be read
package mcp
