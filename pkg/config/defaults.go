package config

const (
	defaultEngine = "canonical"

	defaultListen    = ":8321"
	defaultTransport = "http"

	defaultVectorHost       = "localhost"
	defaultVectorPort       = 6334
	defaultVectorCollection = "engram"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultEventsProvider = "none"
	defaultEventsTopic    = "engram.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Storage paths
// default to empty and are resolved against the .engram/ directory at
// startup.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Engine: EngineConfig{
			Name: defaultEngine,
		},
		Server: ServerConfig{
			Listen:    defaultListen,
			Transport: defaultTransport,
		},
		VectorStore: VectorStoreConfig{
			Host:       defaultVectorHost,
			Port:       defaultVectorPort,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
