package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Storage struct {
		// Path is the BadgerDB directory. Empty means memory-only operation.
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`

	// Vector enables the pgvector-backed indexed searcher. Left empty, the
	// prototype store uses brute-force in-memory search.
	Vector struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"vector"`

	Embedding struct {
		Provider     string `mapstructure:"provider"` // "ngram" or "openai"
		Model        string `mapstructure:"model"`
		OpenaiApiKey string `mapstructure:"openai_api_key"`
		Dimension    int    `mapstructure:"dimension"`
	} `mapstructure:"embedding"`

	Cache struct {
		MaxSize        int           `mapstructure:"max_size"`
		TTL            time.Duration `mapstructure:"ttl"`
		PruneThreshold float64       `mapstructure:"prune_threshold"`
	} `mapstructure:"cache"`

	Prototype struct {
		Alpha             float64 `mapstructure:"alpha"`
		Boost             float64 `mapstructure:"boost"`
		ConfirmedBoost    float64 `mapstructure:"confirmed_boost"`
		MaxConfidence     float64 `mapstructure:"max_confidence"`
		InitialConfidence float64 `mapstructure:"initial_confidence"`
		InitialConfirmed  float64 `mapstructure:"initial_confirmed"`
		DecayRatePerDay   float64 `mapstructure:"decay_rate_per_day"`
		DecayFloor        float64 `mapstructure:"decay_floor"`
		ClassifyMinSim    float64 `mapstructure:"classify_min_similarity"`
	} `mapstructure:"prototype"`

	Confidence struct {
		PrototypeWeight   float64 `mapstructure:"prototype_weight"`
		DensityWeight     float64 `mapstructure:"density_weight"`
		ExtensionWeight   float64 `mapstructure:"extension_weight"`
		ParentWeight      float64 `mapstructure:"parent_weight"`
		Steepness         float64 `mapstructure:"steepness"`
		Center            float64 `mapstructure:"center"`
		MinimumConfidence float64 `mapstructure:"minimum_confidence"`
		AutoPlace         float64 `mapstructure:"auto_place_threshold"`
		Review            float64 `mapstructure:"review_threshold"`
		TargetPrecision   float64 `mapstructure:"target_precision"`
	} `mapstructure:"confidence"`

	Providers struct {
		Profile             string        `mapstructure:"profile"` // automatic, local-first, cloud-first, local-only
		EscalationThreshold float64       `mapstructure:"escalation_threshold"`
		CallTimeout         time.Duration `mapstructure:"call_timeout"`
		RetryDelay          time.Duration `mapstructure:"retry_delay"`
		HealthInterval      time.Duration `mapstructure:"health_interval"`
		AvailabilityTTL     time.Duration `mapstructure:"availability_ttl"`
		BackoffBase         time.Duration `mapstructure:"backoff_base"`
		BackoffMultiplier   float64       `mapstructure:"backoff_multiplier"`
		BackoffCapLocal     time.Duration `mapstructure:"backoff_cap_local"`
		BackoffCapCloud     time.Duration `mapstructure:"backoff_cap_cloud"`
		DegradedEnabled     bool          `mapstructure:"degraded_enabled"`

		OpenAI struct {
			APIKey string `mapstructure:"api_key"`
			Model  string `mapstructure:"model"`
		} `mapstructure:"openai"`
		Gemini struct {
			APIKey string `mapstructure:"api_key"`
			Model  string `mapstructure:"model"`
		} `mapstructure:"gemini"`
		LocalServer struct {
			BaseURL string `mapstructure:"base_url"`
			Model   string `mapstructure:"model"`
		} `mapstructure:"local_server"`
	} `mapstructure:"providers"`

	Serve struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"serve"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency   int           `mapstructure:"concurrency"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"worker"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.curator")

	viper.AutomaticEnv()
	// Bind API keys without requiring a prefix so the usual env vars work.
	viper.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("embedding.openai_api_key", "OPENAI_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("embedding.provider", "ngram")
	viper.SetDefault("embedding.dimension", 256)
	viper.SetDefault("embedding.model", "text-embedding-3-small")

	viper.SetDefault("cache.max_size", 5000)
	viper.SetDefault("cache.ttl", 30*24*time.Hour)
	viper.SetDefault("cache.prune_threshold", 0.9)

	viper.SetDefault("prototype.alpha", 0.9)
	viper.SetDefault("prototype.boost", 0.05)
	viper.SetDefault("prototype.confirmed_boost", 0.10)
	viper.SetDefault("prototype.max_confidence", 0.95)
	viper.SetDefault("prototype.initial_confidence", 0.5)
	viper.SetDefault("prototype.initial_confirmed", 0.7)
	viper.SetDefault("prototype.decay_rate_per_day", 0.01)
	viper.SetDefault("prototype.decay_floor", 0.1)
	viper.SetDefault("prototype.classify_min_similarity", 0.3)

	viper.SetDefault("confidence.prototype_weight", 0.4)
	viper.SetDefault("confidence.density_weight", 0.25)
	viper.SetDefault("confidence.extension_weight", 0.15)
	viper.SetDefault("confidence.parent_weight", 0.2)
	viper.SetDefault("confidence.steepness", 2.5)
	viper.SetDefault("confidence.center", 0.5)
	viper.SetDefault("confidence.minimum_confidence", 0.3)
	viper.SetDefault("confidence.auto_place_threshold", 0.85)
	viper.SetDefault("confidence.review_threshold", 0.6)
	viper.SetDefault("confidence.target_precision", 0.85)

	viper.SetDefault("providers.profile", "automatic")
	viper.SetDefault("providers.escalation_threshold", 0.5)
	viper.SetDefault("providers.call_timeout", 30*time.Second)
	viper.SetDefault("providers.retry_delay", 500*time.Millisecond)
	viper.SetDefault("providers.health_interval", 30*time.Second)
	viper.SetDefault("providers.availability_ttl", 60*time.Second)
	viper.SetDefault("providers.backoff_base", 2*time.Second)
	viper.SetDefault("providers.backoff_multiplier", 2.0)
	viper.SetDefault("providers.backoff_cap_local", 60*time.Second)
	viper.SetDefault("providers.backoff_cap_cloud", 120*time.Second)
	viper.SetDefault("providers.degraded_enabled", true)
	viper.SetDefault("providers.openai.model", "gpt-4o-mini")
	viper.SetDefault("providers.gemini.model", "models/gemini-1.5-flash")
	viper.SetDefault("providers.local_server.base_url", "")
	viper.SetDefault("providers.local_server.model", "llama3.1")

	viper.SetDefault("serve.addr", ":8484")

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.sweep_interval", 6*time.Hour)
}
