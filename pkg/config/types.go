package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent engram configuration stored as
// config.toml in the .engram/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Engine      EngineConfig      `toml:"engine"`
	Server      ServerConfig      `toml:"server"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Events      EventsConfig      `toml:"events"`
	Federation  FederationConfig  `toml:"federation"`
}

// StorageConfig holds canonical store settings. DatabaseURL selects the
// backend: a postgres:// URL or a SQLite file path. Empty values resolve
// to files under the .engram/ directory at startup.
type StorageConfig struct {
	DatabaseURL     string `toml:"database_url,omitempty"`
	AttachmentsPath string `toml:"attachments_path,omitempty"`
}

// EngineConfig selects and parameterizes the active engine.
type EngineConfig struct {
	// Name is one of: canonical, chat-history, markdown, vector, remote,
	// federation.
	Name string `toml:"name,omitempty"`

	// DataDir overrides the engine's data directory. Defaults to
	// .engram/engines/<name>.
	DataDir string `toml:"data_dir,omitempty"`

	// RemoteEndpoint is the MCP endpoint for the remote engine.
	RemoteEndpoint string `toml:"remote_endpoint,omitempty"`
}

// ServerConfig holds the serving settings.
type ServerConfig struct {
	Listen    string `toml:"listen,omitempty"`
	Transport string `toml:"transport,omitempty"`
}

// VectorStoreConfig holds Qdrant settings for the vector engine.
type VectorStoreConfig struct {
	Host       string `toml:"host,omitempty"`
	Port       int    `toml:"port,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventsConfig holds mutation event publishing settings.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// FederationConfig lists the read-only federation sources.
type FederationConfig struct {
	Sources []FederationSource `toml:"sources,omitempty"`
}

// FederationSource is one remote memory in a federation.
type FederationSource struct {
	Name     string `toml:"name"`
	Endpoint string `toml:"endpoint"`
}

// BrokerList splits the comma-separated broker string.
func (e EventsConfig) BrokerList() []string {
	if strings.TrimSpace(e.Brokers) == "" {
		return nil
	}

	parts := strings.Split(e.Brokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			brokers = append(brokers, s)
		}
	}

	return brokers
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.database_url": {
		get: func(c *Config) string { return c.Storage.DatabaseURL },
		set: func(c *Config, v string) error { c.Storage.DatabaseURL = v; return nil },
	},
	"storage.attachments_path": {
		get: func(c *Config) string { return c.Storage.AttachmentsPath },
		set: func(c *Config, v string) error { c.Storage.AttachmentsPath = v; return nil },
	},
	"engine.name": {
		get: func(c *Config) string { return c.Engine.Name },
		set: func(c *Config, v string) error {
			if !IsValidEngineName(v) {
				return fmt.Errorf("unknown engine %q (available: %s)", v, strings.Join(ValidEngineNames(), ", "))
			}
			c.Engine.Name = v
			return nil
		},
	},
	"engine.data_dir": {
		get: func(c *Config) string { return c.Engine.DataDir },
		set: func(c *Config, v string) error { c.Engine.DataDir = v; return nil },
	},
	"engine.remote_endpoint": {
		get: func(c *Config) string { return c.Engine.RemoteEndpoint },
		set: func(c *Config, v string) error { c.Engine.RemoteEndpoint = v; return nil },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.transport": {
		get: func(c *Config) string { return c.Server.Transport },
		set: func(c *Config, v string) error {
			if v != "http" && v != "stdio" {
				return fmt.Errorf("invalid transport %q (available: http, stdio)", v)
			}
			c.Server.Transport = v
			return nil
		},
	},
	"vector_store.host": {
		get: func(c *Config) string { return c.VectorStore.Host },
		set: func(c *Config, v string) error { c.VectorStore.Host = v; return nil },
	},
	"vector_store.port": {
		get: func(c *Config) string {
			if c.VectorStore.Port == 0 {
				return ""
			}
			return strconv.Itoa(c.VectorStore.Port)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.port: %w", err)
			}
			c.VectorStore.Port = n
			return nil
		},
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			if v != "none" && v != "kafka" {
				return fmt.Errorf("invalid events provider %q (available: none, kafka)", v)
			}
			c.Events.Provider = v
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

// ValidEngineNames returns the recognized engine names.
func ValidEngineNames() []string {
	return []string{"canonical", "chat-history", "markdown", "vector", "remote", "federation"}
}

// IsValidEngineName reports whether name is a recognized engine name.
func IsValidEngineName(name string) bool {
	for _, n := range ValidEngineNames() {
		if n == name {
			return true
		}
	}

	return false
}
