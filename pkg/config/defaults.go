package config

const (
	defaultStorageDriver = "sqlite"

	defaultCacheProvider = "redis"
	defaultRedisAddr     = "localhost:6379"
	defaultTranscriptTTL = "12h"
	defaultPersonaTTL    = "1h"
	defaultMaxMessages   = 40

	defaultLLMProvider = "openai"
	defaultLLMBaseURL  = "https://api.openai.com/v1"
	defaultLLMModel    = "gpt-4o-mini"

	defaultAPIListen = ":8081"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "banter.exchange.completed"

	defaultMetricsNamespace = "banter"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Cache: CacheConfig{
			Provider:      defaultCacheProvider,
			RedisAddr:     defaultRedisAddr,
			TranscriptTTL: defaultTranscriptTTL,
			PersonaTTL:    defaultPersonaTTL,
			MaxMessages:   defaultMaxMessages,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			BaseURL:  defaultLLMBaseURL,
			Model:    defaultLLMModel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Metrics: MetricsConfig{
			Namespace: defaultMetricsNamespace,
		},
	}
}
