// Package servecmder provides the serve command for running the engram
// memory server over HTTP or stdio.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/tools"
	"github.com/engramco/engram/server"
)

// serveFlags defines the serve command's flags and their config bindings.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "server.listen",
		Description: "Address for the HTTP server to listen on",
	},
	config.FlagTransport: {
		Name: "transport", Shorthand: "t", ViperKey: "server.transport",
		Description: "Serving transport (http or stdio)",
	},
	config.FlagEngine: {
		Name: "engine", Shorthand: "e", ViperKey: "engine.name",
		Description: "Engine to serve (canonical, chat-history, markdown, vector, remote, federation)",
	},
	config.FlagDatabase: {
		Name: "database", ViperKey: "storage.database_url",
		Description: "Database URL (postgres:// or a SQLite path; default: .engram/engram.db)",
	},
	config.FlagAttachments: {
		Name: "attachments", ViperKey: "storage.attachments_path",
		Description: "Attachments directory (default: .engram/attachments)",
	},
	config.FlagRemoteEndpoint: {
		Name: "remote-endpoint", ViperKey: "engine.remote_endpoint",
		Description: "MCP endpoint for the remote engine",
	},
	config.FlagVectorHost: {
		Name: "vector-host", ViperKey: "vector_store.host",
		Description: "Qdrant host for the vector engine",
	},
	config.FlagVectorColl: {
		Name: "vector-collection", ViperKey: "vector_store.collection",
		Description: "Qdrant collection for the vector engine",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	config.FlagEventsProvider: {
		Name: "events-provider", ViperKey: "events.provider",
		Description: "Mutation event publisher (none or kafka)",
	},
	config.FlagEventsBrokers: {
		Name: "events-brokers", ViperKey: "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventsTopic: {
		Name: "events-topic", ViperKey: "events.topic",
		Description: "Kafka topic for mutation events",
	},
}

// boundFlagKeys lists the registry keys bound to viper in PreRunE.
var boundFlagKeys = []string{
	config.FlagListen,
	config.FlagTransport,
	config.FlagEngine,
	config.FlagDatabase,
	config.FlagAttachments,
	config.FlagRemoteEndpoint,
	config.FlagVectorHost,
	config.FlagVectorColl,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

type ServeCommander struct {
	listen         string
	transport      string
	engineName     string
	database       string
	attachments    string
	remoteEndpoint string
	vectorHost     string
	vectorColl     string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	logFile   string
	configDir string
	debug     bool
	cfg       *config.Config
}

const serveLongDesc string = `Run the engram memory server.

Serves the configured engine's memory tools over the chosen transport:
  http     Streamable HTTP at /mcp, plus /ping and /status (default)
  stdio    MCP over stdin/stdout, for direct agent subprocess use

Flags override environment variables (ENGRAM_*), which override
config.toml, which overrides built-in defaults.

Examples:
  engram serve
  engram serve --engine markdown
  engram serve --engine vector --vector-host qdrant.internal
  engram serve --transport stdio
  engram serve --events-provider kafka --events-brokers localhost:9092`

const serveShortDesc string = "Run the engram memory server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, boundFlagKeys)
			cmder.cfg = config.FromViper(v)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagTransport, &cmder.transport)
	config.AddStringFlag(cmd, serveFlags, config.FlagEngine, &cmder.engineName)
	config.AddStringFlag(cmd, serveFlags, config.FlagDatabase, &cmder.database)
	config.AddStringFlag(cmd, serveFlags, config.FlagAttachments, &cmder.attachments)
	config.AddStringFlag(cmd, serveFlags, config.FlagRemoteEndpoint, &cmder.remoteEndpoint)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorHost, &cmder.vectorHost)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorColl, &cmder.vectorColl)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run() error {
	if !config.IsValidEngineName(c.cfg.Engine.Name) {
		return fmt.Errorf("unknown engine %q", c.cfg.Engine.Name)
	}
	if t := c.cfg.Server.Transport; t != "http" && t != "stdio" {
		return fmt.Errorf("invalid transport %q (available: http, stdio)", t)
	}

	stdio := c.cfg.Server.Transport == "stdio"

	// On stdio, stdout carries the protocol; logs must go to stderr.
	logOpts := []logger.Option{logger.WithDebug(c.debug)}
	if stdio {
		logOpts = append(logOpts, logger.WithWriter(os.Stderr), logger.WithJSON(true))
	} else {
		logOpts = append(logOpts, logger.WithPretty(true))
	}
	log := logger.New(logOpts...)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		log = logger.Multi(log,
			logger.New(logger.WithJSON(true), logger.WithWriter(f), logger.WithDebug(c.debug)))
	}

	rt, err := wiring.Build(c.cfg, c.configDir, log)
	if err != nil {
		return fmt.Errorf("wiring engram: %w", err)
	}
	defer func() { _ = rt.Close() }()

	ts, err := tools.NewServer(tools.Config{
		Wrapper: rt.Wrapper,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating tool server: %w", err)
	}

	if stdio {
		return c.runStdio(ts)
	}

	return c.runHTTP(ts, rt, log)
}

func (c *ServeCommander) runHTTP(ts *tools.Server, rt *wiring.Runtime, log *slog.Logger) error {
	srv, err := server.NewServer(server.Config{
		ListenAddr: c.cfg.Server.Listen,
	}, ts, rt.Wrapper, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return srv.Shutdown()
	}
}

func (c *ServeCommander) runStdio(ts *tools.Server) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := ts.MCP().Run(ctx, &mcp.StdioTransport{}); err != nil && err != context.Canceled {
		return fmt.Errorf("stdio server: %w", err)
	}

	return nil
}
