package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps CLI flag names onto config keys. Flags not listed here are
// ignored by the loader.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"catalog":      "catalog.path",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"llm-provider": "llm.provider",
	"llm-model":    "llm.model",
	"cors-origin":  "server.cors_origins",
}

// Provider defaults that only apply when nothing else set them.
const (
	DefaultOpenAIModel   = "gpt-3.5-turbo"
	DefaultOllamaModel   = "llama3"
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
)

// Load resolves the configuration.
// Precedence (highest to lowest): flags > SQLPILOT_* env > legacy env > config file > defaults.
// A .env file in the working directory is read first and never overrides
// variables already present in the environment.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}

	// 3. Unprefixed variables understood by earlier deployments
	if legacy := legacyEnv(); len(legacy) > 0 {
		if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load legacy env vars: %w", err)
		}
	}

	// 4. SQLPILOT_* variables
	// Transform: SQLPILOT_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used
	applyProviderDefaults(&cfg.LLM)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider must be openai or ollama, got %q", c.LLM.Provider)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must not be empty")
	}
	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		return fmt.Errorf("archive.endpoint and archive.bucket are required when archive is enabled")
	}
	if c.Target.PreviewLimit <= 0 {
		return fmt.Errorf("target.preview_limit must be positive")
	}
	return nil
}

func applyProviderDefaults(c *LLMConfig) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = DefaultOllamaBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultOllamaModel
		}
	case "openai":
		if c.Model == "" {
			c.Model = DefaultOpenAIModel
		}
	}
}

// legacyEnv maps the flat variable names of the earlier service layout.
func legacyEnv() map[string]any {
	out := map[string]any{}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		out["llm.api_key"] = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		out["llm.provider"] = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		out["llm.base_url"] = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		out["llm.model"] = v
	}
	if v := os.Getenv("METADATA_DB_URL"); v != "" {
		out["catalog.path"] = catalogPathFromURL(v)
	}
	return out
}

// catalogPathFromURL accepts either a plain path or a sqlite:/// URL.
func catalogPathFromURL(v string) string {
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return v
}

// findConfigFile returns explicit when it exists, else DefaultFileName (or its
// .yml twin) in the working directory, else "".
func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, name := range []string{DefaultFileName, "sqlpilot.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
