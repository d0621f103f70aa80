package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables resolve to the empty string so placeholder keys never leak
// into API requests.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so secrets can be stored as ${ENV_VAR} in the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Redis.Password = expandEnvVars(cfg.Redis.Password)
	cfg.Qdrant.APIKey = expandEnvVars(cfg.Qdrant.APIKey)
	cfg.Stripe.APIKey = expandEnvVars(cfg.Stripe.APIKey)
	cfg.Stripe.WebhookSecret = expandEnvVars(cfg.Stripe.WebhookSecret)
}

// Load reads the config file, applies defaults and environment overrides, and
// returns a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Engine.MaxIterations == 0 {
		cfg.Engine.MaxIterations = def.Engine.MaxIterations
	}
	if cfg.Engine.TokenBudget == 0 {
		cfg.Engine.TokenBudget = def.Engine.TokenBudget
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = def.Model.Provider
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = def.Model.Name
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = def.Model.MaxTokens
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = def.Catalog.Path
	}
	if cfg.Cart.TaxRate == 0 {
		cfg.Cart.TaxRate = def.Cart.TaxRate
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = def.Redis.Addr
	}
	if cfg.Redis.TTLMinutes == 0 {
		cfg.Redis.TTLMinutes = def.Redis.TTLMinutes
	}
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = def.Qdrant.URL
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Embeddings.CachePath == "" {
		cfg.Embeddings.CachePath = def.Embeddings.CachePath
	}
}

// applyEnvOverrides reads SHOPMESH_* environment variables and overrides
// config values. Only operationally interesting knobs are exposed this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOPMESH_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SHOPMESH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHOPMESH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SHOPMESH_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("SHOPMESH_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("SHOPMESH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SHOPMESH_QDRANT_URL"); v != "" {
		cfg.Qdrant.URL = v
		cfg.Qdrant.Enabled = true
	}
	if v := os.Getenv("SHOPMESH_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
}
