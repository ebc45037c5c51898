// Package tools is the externally callable boundary: it binds the
// wrapped engine's effective operations to MCP tools on a Model Context
// Protocol server. Exactly the effective capability set is registered —
// a client introspecting the tool list sees precisely what this memory
// can do.
//
// The package is also the error boundary. Handlers never return Go
// errors to the protocol layer; every failure becomes an IsError tool
// result carrying the original message, and the original error is
// logged server-side.
package tools

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/utils"
)

// Config carries the tool surface dependencies.
type Config struct {
	// Wrapper is the composed engine the tools forward to.
	Wrapper *engine.Wrapper

	// Logger is used for server-side failure logging. Defaults to a nop
	// logger.
	Logger *slog.Logger
}

// Server exposes the wrapped engine as MCP tools.
type Server struct {
	wrapper   *engine.Wrapper
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with one tool per effective operation.
func NewServer(c Config) (*Server, error) {
	if c.Wrapper == nil {
		return nil, errNilWrapper
	}

	s := &Server{
		wrapper: c.Wrapper,
		logger:  c.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "engram",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	caps := c.Wrapper.Capabilities()

	if caps.Has(engine.OperationInfo) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationInfo),
			Description: infoDescription,
		}, s.handleInfo)
	}
	if caps.Has(engine.OperationQuery) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationQuery),
			Description: queryDescription,
		}, s.handleQuery)
	}
	if caps.Has(engine.OperationInsert) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationInsert),
			Description: insertDescription,
		}, s.handleInsert)
	}
	if caps.Has(engine.OperationInsertFile) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationInsertFile),
			Description: insertFileDescription,
		}, s.handleInsertFile)
	}
	if caps.Has(engine.OperationDelete) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationDelete),
			Description: deleteDescription,
		}, s.handleDelete)
	}
	if caps.Has(engine.OperationGetRecord) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationGetRecord),
			Description: getRecordDescription,
		}, s.handleGetRecord)
	}
	if caps.Has(engine.OperationListRecords) {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        string(engine.OperationListRecords),
			Description: listRecordsDescription,
		}, s.handleListRecords)
	}

	s.mcpServer = mcpServer

	// Streamable HTTP handler for stateless operation behind the HTTP
	// server.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCP returns the underlying MCP server, used for stdio transport.
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}
