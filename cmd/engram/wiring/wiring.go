// Package wiring assembles a running engram from configuration: the
// canonical store, the selected engine, the capability wrapper, and the
// mutation event publisher. Commands that need a live engine (serve,
// status, insert, search, ...) build a Runtime and close it when done.
package wiring

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/dotdir"
	"github.com/engramco/engram/pkg/embeddings"
	"github.com/engramco/engram/pkg/embeddings/ollama"
	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/engine/canonical"
	"github.com/engramco/engram/pkg/engine/chathistory"
	"github.com/engramco/engram/pkg/engine/federation"
	"github.com/engramco/engram/pkg/engine/markdown"
	"github.com/engramco/engram/pkg/engine/remote"
	"github.com/engramco/engram/pkg/engine/vector"
	"github.com/engramco/engram/pkg/events"
	"github.com/engramco/engram/pkg/events/kafka"
	"github.com/engramco/engram/pkg/events/nop"
	"github.com/engramco/engram/pkg/store"
)

const databaseFile = "engram.db"

// Runtime is a fully wired engram: config, canonical store, composed
// engine, and event publisher.
type Runtime struct {
	Config    *config.Config
	Store     *store.Canonical
	Wrapper   *engine.Wrapper
	Publisher events.Publisher
}

// Build wires a Runtime from the given config. Empty storage paths
// resolve to files under the .engram/ directory (configDir override
// semantics match the config loader's).
func Build(cfg *config.Config, configDir string, log *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	ddm := dotdir.NewManager()

	st, err := buildStore(cfg, configDir, ddm, log)
	if err != nil {
		return nil, err
	}

	pub, err := buildPublisher(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	eng, err := buildEngine(cfg, st, configDir, ddm, log)
	if err != nil {
		_ = pub.Close()
		_ = st.Close()
		return nil, err
	}

	wrapper, err := engine.NewWrapper(eng, st,
		engine.WithLogger(log),
		engine.WithPublisher(pub),
	)
	if err != nil {
		_ = eng.Close()
		_ = pub.Close()
		_ = st.Close()
		return nil, err
	}

	return &Runtime{
		Config:    cfg,
		Store:     st,
		Wrapper:   wrapper,
		Publisher: pub,
	}, nil
}

// Close releases the engine, publisher, and store, in that order.
func (r *Runtime) Close() error {
	return errors.Join(
		r.Wrapper.Close(),
		r.Publisher.Close(),
		r.Store.Close(),
	)
}

func buildStore(cfg *config.Config, configDir string, ddm *dotdir.Manager, log *slog.Logger) (*store.Canonical, error) {
	dbURL := cfg.Storage.DatabaseURL
	if dbURL == "" {
		target, err := ddm.Target(configDir)
		if err != nil {
			return nil, err
		}
		dbURL = filepath.Join(target, databaseFile)
	}

	attachments := cfg.Storage.AttachmentsPath
	if attachments == "" {
		var err error
		attachments, err = ddm.AttachmentsPath(configDir)
		if err != nil {
			return nil, err
		}
	}

	return store.New(store.Config{
		DatabaseURL:     dbURL,
		AttachmentsPath: attachments,
	}, store.WithLogger(log))
}

func buildPublisher(cfg *config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "none":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.BrokerList(),
			Topic:   cfg.Events.Topic,
		}, kafka.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}

func buildEngine(cfg *config.Config, st *store.Canonical, configDir string, ddm *dotdir.Manager, log *slog.Logger) (engine.Engine, error) {
	switch cfg.Engine.Name {
	case "", "canonical":
		return canonical.New(st), nil

	case "chat-history":
		dataDir, err := engineDataDir(cfg, configDir, ddm, "chat-history")
		if err != nil {
			return nil, err
		}
		e, err := chathistory.New(dataDir, chathistory.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return e, nil

	case "markdown":
		mirrorDir, err := engineDataDir(cfg, configDir, ddm, "markdown")
		if err != nil {
			return nil, err
		}
		e, err := markdown.New(st, mirrorDir, markdown.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return e, nil

	case "vector":
		embedder, err := buildEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		e, err := vector.New(vector.Config{
			Host:       cfg.VectorStore.Host,
			Port:       cfg.VectorStore.Port,
			Collection: cfg.VectorStore.Collection,
			VectorSize: uint64(cfg.Embedding.Dimensions),
		}, embedder, vector.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return e, nil

	case "remote":
		if cfg.Engine.RemoteEndpoint == "" {
			return nil, errors.New("engine.remote_endpoint is required for the remote engine")
		}
		e, err := remote.New(remote.Config{
			Endpoint: cfg.Engine.RemoteEndpoint,
		}, remote.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return e, nil

	case "federation":
		return buildFederation(cfg, log)

	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine.Name)
	}
}

func buildEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "ollama":
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: cfg.Embedding.Target,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// buildFederation turns each configured federation source into a remote
// engine and composes them.
func buildFederation(cfg *config.Config, log *slog.Logger) (engine.Engine, error) {
	if len(cfg.Federation.Sources) == 0 {
		return nil, errors.New("federation requires at least one [[federation.sources]] entry")
	}

	sources := make([]engine.Engine, 0, len(cfg.Federation.Sources))
	for _, src := range cfg.Federation.Sources {
		r, err := remote.New(remote.Config{
			Name:     src.Name,
			Endpoint: src.Endpoint,
		}, remote.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("federation source %q: %w", src.Name, err)
		}
		sources = append(sources, r)
	}

	f, err := federation.New(sources, federation.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func engineDataDir(cfg *config.Config, configDir string, ddm *dotdir.Manager, name string) (string, error) {
	if cfg.Engine.DataDir != "" {
		return cfg.Engine.DataDir, nil
	}
	return ddm.EngineDataPath(configDir, name)
}
