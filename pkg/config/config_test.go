package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("NewDefaultConfig", func() {
	It("fills every section with sane defaults", func() {
		cfg := config.NewDefaultConfig()

		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Engine.Name).To(Equal("canonical"))
		Expect(cfg.Server.Listen).To(Equal(":8321"))
		Expect(cfg.Server.Transport).To(Equal("http"))
		Expect(cfg.VectorStore.Host).To(Equal("localhost"))
		Expect(cfg.VectorStore.Port).To(Equal(6334))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(cfg.Embedding.Dimensions).To(BeEquivalentTo(768))
		Expect(cfg.Events.Provider).To(Equal("none"))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("parses the section layout", func() {
		cfg, err := config.ParseConfigTOML([]byte(`
version = 0

[storage]
database_url = "postgres://localhost/engram"

[engine]
name = "markdown"

[server]
listen = ":9000"

[[federation.sources]]
name = "team"
endpoint = "https://team.example.com/mcp"
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.DatabaseURL).To(Equal("postgres://localhost/engram"))
		Expect(cfg.Engine.Name).To(Equal("markdown"))
		Expect(cfg.Server.Listen).To(Equal(":9000"))
		Expect(cfg.Federation.Sources).To(HaveLen(1))
		Expect(cfg.Federation.Sources[0].Name).To(Equal("team"))
	})

	It("rejects unsupported versions", func() {
		_, err := config.ParseConfigTOML([]byte("version = 99\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
	})

	It("rejects malformed TOML", func() {
		_, err := config.ParseConfigTOML([]byte("[storage\n"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Configer", func() {
	var cfger *config.Configer

	BeforeEach(func() {
		dir := GinkgoT().TempDir()

		var err error
		cfger, err = config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns defaults when no config file exists", func() {
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Name).To(Equal("canonical"))
	})

	It("round-trips save and load", func() {
		cfg := config.NewDefaultConfig()
		cfg.Engine.Name = "chat-history"
		cfg.Server.Listen = ":7777"

		Expect(cfger.SaveConfig(cfg)).To(Succeed())

		loaded, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Engine.Name).To(Equal("chat-history"))
		Expect(loaded.Server.Listen).To(Equal(":7777"))
	})

	It("fills missing fields from defaults on load", func() {
		Expect(os.WriteFile(cfger.GetTarget(), []byte("[engine]\nname = \"vector\"\n"), 0o600)).To(Succeed())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Name).To(Equal("vector"))
		Expect(cfg.Server.Listen).To(Equal(":8321"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
	})

	It("refuses to save a nil config", func() {
		Expect(cfger.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
	})

	Describe("get and set by dotted key", func() {
		It("sets and gets values", func() {
			Expect(cfger.SetConfigValue("server.listen", ":6000")).To(Succeed())

			got, err := cfger.GetConfigValue("server.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(":6000"))
		})

		It("rejects unknown keys", func() {
			Expect(cfger.SetConfigValue("nope.nope", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := cfger.GetConfigValue("nope.nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("validates engine names", func() {
			Expect(cfger.SetConfigValue("engine.name", "markdown")).To(Succeed())
			Expect(cfger.SetConfigValue("engine.name", "turbo")).To(MatchError(ContainSubstring("unknown engine")))
		})

		It("validates the transport", func() {
			Expect(cfger.SetConfigValue("server.transport", "stdio")).To(Succeed())
			Expect(cfger.SetConfigValue("server.transport", "carrier-pigeon")).To(HaveOccurred())
		})

		It("validates the events provider", func() {
			Expect(cfger.SetConfigValue("events.provider", "kafka")).To(Succeed())
			Expect(cfger.SetConfigValue("events.provider", "smoke-signals")).To(HaveOccurred())
		})

		It("parses numeric keys", func() {
			Expect(cfger.SetConfigValue("embedding.dimensions", "1024")).To(Succeed())
			Expect(cfger.SetConfigValue("embedding.dimensions", "lots")).To(HaveOccurred())

			Expect(cfger.SetConfigValue("vector_store.port", "6333")).To(Succeed())
			Expect(cfger.SetConfigValue("vector_store.port", "not-a-port")).To(HaveOccurred())
		})
	})

	It("covers every registered key in ValidConfigKeys", func() {
		for _, k := range config.ValidConfigKeys() {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), "key %s", k)
		}
		Expect(config.ValidConfigKeys()).To(ContainElements(
			"storage.database_url", "engine.name", "server.listen", "events.topic",
		))
	})
})

var _ = Describe("EventsConfig", func() {
	It("splits the broker list on commas", func() {
		e := config.EventsConfig{Brokers: "kafka-1:9092, kafka-2:9092,,"}
		Expect(e.BrokerList()).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
	})

	It("returns nil for an empty broker string", func() {
		Expect(config.EventsConfig{}.BrokerList()).To(BeNil())
	})
})

var _ = Describe("InitViper", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("applies defaults when no file exists", func() {
		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("server.listen")).To(Equal(":8321"))
		Expect(v.GetString("engine.name")).To(Equal("canonical"))
	})

	It("lets file values override defaults", func() {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte("[server]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("server.listen")).To(Equal(":9999"))
	})

	It("materializes a Config via FromViper", func() {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte(`
[engine]
name = "federation"

[[federation.sources]]
name = "team"
endpoint = "http://localhost:9001/mcp"
`), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Engine.Name).To(Equal("federation"))
		Expect(cfg.Server.Listen).To(Equal(":8321"))
		Expect(cfg.Federation.Sources).To(HaveLen(1))
		Expect(cfg.Federation.Sources[0].Endpoint).To(Equal("http://localhost:9001/mcp"))
	})

	It("lets environment variables override file values", func() {
		GinkgoT().Setenv("ENGRAM_ENGINE_NAME", "markdown")

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("engine.name")).To(Equal("markdown"))
	})
})
