package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engramco/engram/pkg/engine"
)

var errNilWrapper = errors.New("wrapper is required")

const (
	infoDescription = "Describe this memory: which engine backs it, how many " +
		"records it holds, and how to use it effectively."
	queryDescription = "Search the memory for relevant records. How matching " +
		"works depends on the engine; see the info tool's instructions."
	insertDescription = "Store a text record in the memory. Returns the record " +
		"id. Supplying your own id fails if it already exists."
	insertFileDescription = "Store a file in the memory. Provide either an " +
		"absolute local path, or a file name plus base64-encoded data."
	deleteDescription = "Delete a record by id. Deleting a missing id succeeds " +
		"and reports found=false."
	getRecordDescription   = "Fetch a single record by id, including its full content."
	listRecordsDescription = "List records newest first with content previews. " +
		"Page with limit and offset."
)

// InfoInput is the (empty) input of the info tool.
type InfoInput struct{}

// QueryInput is the input of the query tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 10)"`
}

// InsertInput is the input of the insert tool.
type InsertInput struct {
	Content string `json:"content" jsonschema:"the text content to store"`
	ID      string `json:"id,omitempty" jsonschema:"optional record id; generated when omitted"`
	Source  string `json:"source,omitempty" jsonschema:"optional provenance label, e.g. a filename or URL"`
}

// InsertFileInput is the input of the insert_file tool.
type InsertFileInput struct {
	Path string `json:"path,omitempty" jsonschema:"absolute path of a local file to store"`
	Name string `json:"name,omitempty" jsonschema:"original file name, required with data"`
	Data string `json:"data,omitempty" jsonschema:"base64-encoded file bytes"`
	ID   string `json:"id,omitempty" jsonschema:"optional record id; generated when omitted"`
}

// DeleteInput is the input of the delete tool.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"the record id to delete"`
}

// GetRecordInput is the input of the get_record tool.
type GetRecordInput struct {
	ID string `json:"id" jsonschema:"the record id to fetch"`
}

// ListRecordsInput is the input of the list_records tool.
type ListRecordsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size (default: 100)"`
	Offset int `json:"offset,omitempty" jsonschema:"number of records to skip"`
}

func (s *Server) handleInfo(ctx context.Context, _ *mcp.CallToolRequest, _ InfoInput) (*mcp.CallToolResult, engine.InfoResponse, error) {
	info, err := s.wrapper.Info(ctx)
	if err != nil {
		return s.errResult("info", err), engine.InfoResponse{}, nil
	}

	return s.okResult(info), *info, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, engine.QueryResponse, error) {
	resp, err := s.wrapper.Query(ctx, input.Query, input.Limit)
	if err != nil {
		return s.errResult("query", err), engine.QueryResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

func (s *Server) handleInsert(ctx context.Context, _ *mcp.CallToolRequest, input InsertInput) (*mcp.CallToolResult, engine.InsertResponse, error) {
	resp, err := s.wrapper.Insert(ctx, input.Content, input.ID, input.Source)
	if err != nil {
		return s.errResult("insert", err), engine.InsertResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

func (s *Server) handleInsertFile(ctx context.Context, _ *mcp.CallToolRequest, input InsertFileInput) (*mcp.CallToolResult, engine.InsertResponse, error) {
	var (
		resp *engine.InsertResponse
		err  error
	)

	switch {
	case input.Data != "":
		if input.Name == "" {
			err = fmt.Errorf("name is required with data")
			break
		}

		var data []byte
		data, err = base64.StdEncoding.DecodeString(input.Data)
		if err != nil {
			err = fmt.Errorf("data is not valid base64: %w", err)
			break
		}

		resp, err = s.wrapper.InsertFile(ctx, input.Name, data, input.ID)
	case input.Path != "":
		resp, err = s.wrapper.InsertFile(ctx, input.Path, nil, input.ID)
	default:
		err = fmt.Errorf("either path or name+data is required")
	}

	if err != nil {
		return s.errResult("insert_file", err), engine.InsertResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, engine.DeleteResponse, error) {
	resp, err := s.wrapper.Delete(ctx, input.ID)
	if err != nil {
		return s.errResult("delete", err), engine.DeleteResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

func (s *Server) handleGetRecord(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, engine.GetRecordResponse, error) {
	resp, err := s.wrapper.GetRecord(ctx, input.ID)
	if err != nil {
		return s.errResult("get_record", err), engine.GetRecordResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

func (s *Server) handleListRecords(ctx context.Context, _ *mcp.CallToolRequest, input ListRecordsInput) (*mcp.CallToolResult, engine.ListResponse, error) {
	resp, err := s.wrapper.ListRecords(ctx, input.Limit, input.Offset)
	if err != nil {
		return s.errResult("list_records", err), engine.ListResponse{}, nil
	}

	return s.okResult(resp), *resp, nil
}

// errResult logs the original error and converts it into a client-safe
// IsError result. The message is preserved verbatim for diagnosability;
// the typed error itself never crosses the boundary.
func (s *Server) errResult(tool string, err error) *mcp.CallToolResult {
	s.logger.Error("tool call failed", "tool", tool, "error", err)

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}

// okResult serializes the structured output as JSON into a TextContent
// block as well, for clients that don't read structured content.
func (s *Server) okResult(out any) *mcp.CallToolResult {
	payload, err := json.Marshal(out)
	if err != nil {
		return s.errResult("marshal", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(payload)},
		},
	}
}
