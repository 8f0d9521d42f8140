package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[cache]
provider = "memory"
max_messages = 10
transcript_ttl = "30m"

[llm]
model = "gpt-4.1"

[matrix]
rooms = ["!a:example.org", "!b:example.org"]
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Cache.Provider).To(Equal("memory"))
			Expect(cfg.Cache.MaxMessages).To(Equal(10))
			Expect(cfg.LLM.Model).To(Equal("gpt-4.1"))
			Expect(cfg.Matrix.Rooms).To(Equal([]string{"!a:example.org", "!b:example.org"}))

			ttl, err := cfg.Cache.TranscriptTTLDuration()
			Expect(err).NotTo(HaveOccurred())
			Expect(ttl).To(Equal(30 * time.Minute))

			// Unset fields are filled from defaults.
			Expect(cfg.Cache.PersonaTTL).To(Equal("1h"))
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[cache\nprovider="), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 99\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 99")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk and reads it back", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = "postgres"
			cfg.Storage.PostgresDSN = "postgres://banter@localhost/banter"
			cfg.Events.Brokers = []string{"kafka-1:9092"}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("llm.model", "gpt-4.1-mini")).To(Succeed())

			v, err := c.GetConfigValue("llm.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("gpt-4.1-mini"))
		})

		It("sets an int config key", func() {
			Expect(c.SetConfigValue("cache.max_messages", "12")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Cache.MaxMessages).To(Equal(12))
		})

		It("sets a list key from comma separated values", func() {
			Expect(c.SetConfigValue("events.brokers", "a:9092, b:9092,")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Events.Brokers).To(Equal([]string{"a:9092", "b:9092"}))

			v, err := c.GetConfigValue("events.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("a:9092,b:9092"))
		})

		It("validates durations", func() {
			Expect(c.SetConfigValue("cache.transcript_ttl", "6h")).To(Succeed())
			Expect(c.SetConfigValue("cache.transcript_ttl", "soon")).To(HaveOccurred())
			Expect(c.SetConfigValue("cache.persona_ttl", "-1h")).To(HaveOccurred())
		})

		It("validates enumerated values", func() {
			Expect(c.SetConfigValue("storage.driver", "postgres")).To(Succeed())
			Expect(c.SetConfigValue("storage.driver", "mongo")).To(HaveOccurred())
			Expect(c.SetConfigValue("cache.provider", "memcached")).To(HaveOccurred())
		})

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("proxy.upstream", "x")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("returns error for invalid int value", func() {
			Expect(c.SetConfigValue("cache.redis_db", "one")).To(HaveOccurred())
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("llm.model", "m1")).To(Succeed())
			Expect(c.SetConfigValue("api.listen", ":9000")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Model).To(Equal("m1"))
			Expect(cfg.API.Listen).To(Equal(":9000"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("cache.transcript_ttl")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("12h"))
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nope")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key once in TOML section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys[0]).To(Equal("storage.driver"))
			Expect(keys).To(ContainElements("cache.max_messages", "llm.api_key", "matrix.rooms", "events.topic", "metrics.namespace"))

			seen := map[string]bool{}
			for _, k := range keys {
				Expect(seen).NotTo(HaveKey(k))
				seen[k] = true
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})
	})

	Describe("IsSecretKey", func() {
		It("flags credentials only", func() {
			Expect(config.IsSecretKey("llm.api_key")).To(BeTrue())
			Expect(config.IsSecretKey("matrix.access_token")).To(BeTrue())
			Expect(config.IsSecretKey("llm.model")).To(BeFalse())
		})
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns the openai preset as the defaults", func() {
		cfg, err := config.PresetConfig("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("points the ollama preset at the local OpenAI-compatible endpoint", func() {
		cfg, err := config.PresetConfig("Ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.BaseURL).To(Equal("http://localhost:11434/v1"))
		Expect(cfg.LLM.Model).To(Equal("llama3.2"))
	})

	It("uses the in-process cache for the local preset", func() {
		cfg, err := config.PresetConfig("local")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Cache.Provider).To(Equal("memory"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists the preset names", func() {
		Expect(config.ValidPresetNames()).To(Equal([]string{"openai", "ollama", "local"}))
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("mirrors the bot's operating defaults", func() {
		cfg := config.NewDefaultConfig()

		transcript, err := cfg.Cache.TranscriptTTLDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(transcript).To(Equal(12 * time.Hour))

		persona, err := cfg.Cache.PersonaTTLDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(persona).To(Equal(time.Hour))

		Expect(cfg.Cache.MaxMessages).To(Equal(40))
		Expect(cfg.LLM.Model).To(Equal("gpt-4o-mini"))
		Expect(cfg.Events.Topic).To(Equal("banter.exchange.completed"))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[llm]
base_url = "http://localhost:11434/v1"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("llm.base_url")).To(Equal("http://localhost:11434/v1"))
		Expect(v.GetString("llm.model")).To(Equal("gpt-4o-mini"))
	})

	It("respects environment variables with BANTER_ prefix", func() {
		GinkgoT().Setenv("BANTER_LLM_API_KEY", "sk-test")
		GinkgoT().Setenv("BANTER_EVENTS_BROKERS", "k1:9092,k2:9092")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.LLM.APIKey).To(Equal("sk-test"))
		Expect(cfg.Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
	})

	It("env vars take precedence over config file values", func() {
		data := `[cache]
redis_addr = "redis.internal:6379"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("BANTER_CACHE_REDIS_ADDR", "localhost:6380")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("cache.redis_addr")).To(Equal("localhost:6380"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var model string
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)

		Expect(cmd.Flags().Set("model", "gpt-4.1")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagModel})

		Expect(config.FromViper(v).LLM.Model).To(Equal("gpt-4.1"))
	})

	It("falls through to config when flag not set", func() {
		data := `[api]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("api.listen")).To(Equal(":8081"))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)

		f := cmd.Flags().Lookup("api-listen")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagAPIListen].Description))
		Expect(f.DefValue).To(Equal(":8081"))
	})

	It("AddIntFlag defaults max-messages from the defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		var n int
		config.AddIntFlag(cmd, config.Flags, config.FlagMaxMessages, &n)

		f := cmd.Flags().Lookup("max-messages")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("40"))
	})
})
