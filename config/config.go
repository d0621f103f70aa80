// Package config defines the YAML configuration surface of the service and
// its loading rules: file values, then defaults for anything unset, then
// SHOPMESH_* environment overrides, then ${ENV_VAR} expansion for secrets.
package config

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Engine     EngineConfig     `yaml:"engine"`
	Model      ModelConfig      `yaml:"model"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Cart       CartConfig       `yaml:"cart"`
	Redis      RedisConfig      `yaml:"redis"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Guardrails GuardrailsConfig `yaml:"guardrails"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// EngineConfig tunes the conversational loop.
type EngineConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	TokenBudget   int `yaml:"token_budget"`
}

// ModelConfig selects and tunes the language model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, mock
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
}

// CatalogConfig locates the product catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// CartConfig tunes cart derivations.
type CartConfig struct {
	TaxRate float64 `yaml:"tax_rate"`
}

// RedisConfig enables Redis-backed conversation persistence.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// QdrantConfig enables the Qdrant-backed semantic index.
type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key"`
}

// EmbeddingsConfig controls the local embedding index used when Qdrant is off.
type EmbeddingsConfig struct {
	CachePath string `yaml:"cache_path"`
}

// StripeConfig enables checkout.
type StripeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

// GuardrailsConfig extends the built-in deny and allow lists.
type GuardrailsConfig struct {
	ExtraCompetitors  []string `yaml:"extra_competitors"`
	ExtraOffTopic     []string `yaml:"extra_off_topic"`
	AllowedPromoCodes []string `yaml:"allowed_promo_codes"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Engine:  EngineConfig{MaxIterations: 5, TokenBudget: 8000},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4096,
			APIKey:      "${OPENAI_API_KEY}",
		},
		Catalog:    CatalogConfig{Path: "data/products.json"},
		Cart:       CartConfig{TaxRate: 0.08},
		Redis:      RedisConfig{Addr: "localhost:6379", TTLMinutes: 60},
		Qdrant:     QdrantConfig{URL: "http://localhost:6334", Collection: "products"},
		Embeddings: EmbeddingsConfig{CachePath: "data/embeddings.json"},
	}
}
