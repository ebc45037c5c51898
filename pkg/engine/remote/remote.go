// Package remote is a read-only engine backed by another engram server
// over the Model Context Protocol. It calls the remote's info and query
// tools and never mutates: the remote owns its own canonical store.
//
// Remote replies are expected to carry structured content matching the
// shared response shapes; unstructured text replies degrade to a single
// opaque result rather than failing.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/utils"
)

// Config identifies the remote server.
type Config struct {
	// Name labels this remote, e.g. a federation source name. Defaults
	// to "remote".
	Name string

	// Endpoint is the remote's streamable HTTP URL, e.g.
	// "https://memory.example.com/mcp".
	Endpoint string
}

// Engine proxies info and query to a remote engram over MCP.
type Engine struct {
	name     string
	endpoint string
	logger   *slog.Logger

	connect connectFunc

	mu      sync.Mutex
	session toolCaller
}

// toolCaller is the slice of an MCP client session the engine uses.
type toolCaller interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

type connectFunc func(ctx context.Context) (toolCaller, error)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a remote engine for the given endpoint. The connection is
// dialed lazily on first use.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote endpoint is required")
	}

	name := cfg.Name
	if name == "" {
		name = "remote"
	}

	e := &Engine{
		name:     name,
		endpoint: cfg.Endpoint,
		logger:   logger.Nop(),
	}

	e.connect = func(ctx context.Context) (toolCaller, error) {
		client := mcp.NewClient(&mcp.Implementation{
			Name:    "engram",
			Version: utils.Version,
		}, nil)

		session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
			Endpoint: e.endpoint,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", e.endpoint, err)
		}

		return session, nil
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return e.name }

// Capabilities implements engine.Engine. Remotes are read-only.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationInfo, engine.OperationQuery}
}

// Info calls the remote's info tool.
func (e *Engine) Info(ctx context.Context) (*engine.InfoResponse, error) {
	res, err := e.call(ctx, "info", map[string]any{})
	if err != nil {
		return nil, err
	}

	var info engine.InfoResponse
	if decodeStructured(res, &info) {
		return &info, nil
	}

	// Unstructured reply: surface whatever text came back.
	return &engine.InfoResponse{
		Engine:       e.name,
		Instructions: textContent(res),
	}, nil
}

// Query calls the remote's query tool.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*engine.QueryResponse, error) {
	args := map[string]any{"query": query}
	if limit > 0 {
		args["limit"] = limit
	}

	res, err := e.call(ctx, "query", args)
	if err != nil {
		return nil, err
	}

	var resp engine.QueryResponse
	if decodeStructured(res, &resp) {
		return &resp, nil
	}

	// Unstructured reply: degrade to one opaque result.
	results := []engine.QueryResult{}
	if text := textContent(res); text != "" {
		results = append(results, engine.QueryResult{Content: text})
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Close closes the remote session if one was established.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}

	err := e.session.Close()
	e.session = nil
	return err
}

func (e *Engine) call(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	session, err := e.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("remote %s call to %q failed: %w", e.name, tool, err)
	}

	if res.IsError {
		return nil, fmt.Errorf("remote %s rejected %q: %s", e.name, tool, textContent(res))
	}

	return res, nil
}

func (e *Engine) ensureSession(ctx context.Context) (toolCaller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return e.session, nil
	}

	e.logger.Debug("connecting to remote engram", "name", e.name, "endpoint", e.endpoint)
	session, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	e.session = session
	return session, nil
}

// decodeStructured round-trips a result's structured content into out,
// reporting whether it was present and well-formed.
func decodeStructured(res *mcp.CallToolResult, out any) bool {
	if res.StructuredContent == nil {
		return false
	}

	payload, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return false
	}

	return json.Unmarshal(payload, out) == nil
}

// textContent collects the text blocks of a result.
func textContent(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}

	return ""
}

var _ engine.Engine = (*Engine)(nil)
