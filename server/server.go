// Package server hosts the engram tool surface over HTTP. It mounts the
// MCP streamable handler at /mcp on a fiber app, alongside a health
// endpoint and a small status endpoint for non-MCP callers.
package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/tools"
	"github.com/engramco/engram/pkg/utils"
)

// Config is the HTTP server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8321")
	ListenAddr string
}

// Server is the HTTP front door for a running engram.
type Server struct {
	config  Config
	tools   *tools.Server
	wrapper *engine.Wrapper
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates the HTTP server around an already-configured tool
// server. The wrapper is shared with the tool server and used for the
// /status endpoint.
func NewServer(config Config, ts *tools.Server, wrapper *engine.Wrapper, log *slog.Logger) (*Server, error) {
	if ts == nil {
		return nil, errors.New("tools server is required")
	}
	if wrapper == nil {
		return nil, errors.New("engine wrapper is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		tools:   ts,
		wrapper: wrapper,
		logger:  log,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/status", s.handleStatus)
	app.All("/mcp", adaptor.HTTPHandler(ts.Handler()))

	return s, nil
}

// Run starts the HTTP server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting engram server",
		"listen", s.config.ListenAddr,
		"engine", s.wrapper.Name(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// statusResponse is the /status payload.
type statusResponse struct {
	Version      string   `json:"version"`
	Engine       string   `json:"engine"`
	Capabilities []string `json:"capabilities"`
	Records      int      `json:"records"`
}

// handleStatus reports the running engine, its effective capabilities,
// and the record count.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	info, err := s.wrapper.Info(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "engine info unavailable",
		})
	}

	return c.JSON(statusResponse{
		Version:      utils.Version,
		Engine:       info.Engine,
		Capabilities: s.wrapper.Capabilities().Strings(),
		Records:      info.Records,
	})
}
