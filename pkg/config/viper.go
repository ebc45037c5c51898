package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/engramco/engram/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ENGRAM_SERVER_LISTEN, ENGRAM_ENGINE_NAME, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: ENGRAM_SERVER_LISTEN, ENGRAM_STORAGE_DATABASE_URL, etc.
	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from a viper instance populated by
// InitViper, after flag binding. This is how serving commands see the
// full precedence chain as one struct.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			DatabaseURL:     v.GetString("storage.database_url"),
			AttachmentsPath: v.GetString("storage.attachments_path"),
		},
		Engine: EngineConfig{
			Name:           v.GetString("engine.name"),
			DataDir:        v.GetString("engine.data_dir"),
			RemoteEndpoint: v.GetString("engine.remote_endpoint"),
		},
		Server: ServerConfig{
			Listen:    v.GetString("server.listen"),
			Transport: v.GetString("server.transport"),
		},
		VectorStore: VectorStoreConfig{
			Host:       v.GetString("vector_store.host"),
			Port:       v.GetInt("vector_store.port"),
			Collection: v.GetString("vector_store.collection"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}

	// Federation sources only come from the config file; there is no
	// flag or env form for a list of tables.
	_ = v.UnmarshalKey("federation.sources", &cfg.Federation.Sources)

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.database_url", d.Storage.DatabaseURL)
	v.SetDefault("storage.attachments_path", d.Storage.AttachmentsPath)

	// Engine
	v.SetDefault("engine.name", d.Engine.Name)
	v.SetDefault("engine.data_dir", d.Engine.DataDir)
	v.SetDefault("engine.remote_endpoint", d.Engine.RemoteEndpoint)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.transport", d.Server.Transport)

	// Vector store
	v.SetDefault("vector_store.host", d.VectorStore.Host)
	v.SetDefault("vector_store.port", d.VectorStore.Port)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
