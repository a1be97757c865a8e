// Package config loads sqlpilot settings from defaults, a YAML file,
// environment variables and command-line flags, in that order of precedence.
package config

import "time"

// DefaultFileName is looked up in the working directory when no explicit
// config file is given.
const DefaultFileName = "sqlpilot.yaml"

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: SQLPILOT_SERVER__ADDR sets server.addr.
const EnvPrefix = "SQLPILOT_"

// Config is the fully resolved configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"  yaml:"server"`
	Catalog CatalogConfig `koanf:"catalog" yaml:"catalog"`
	Log     LogConfig     `koanf:"log"     yaml:"log"`
	Target  TargetConfig  `koanf:"target"  yaml:"target"`
	Cache   CacheConfig   `koanf:"cache"   yaml:"cache"`
	LLM     LLMConfig     `koanf:"llm"     yaml:"llm"`
	Archive ArchiveConfig `koanf:"archive" yaml:"archive"`

	// FileUsed is the config file that was loaded, empty when none.
	FileUsed string `koanf:"-" yaml:"-"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"             yaml:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"     yaml:"cors_origins"`
}

type CatalogConfig struct {
	// Path of the SQLite catalog file, or ":memory:".
	Path string `koanf:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"  yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// TargetConfig bounds every interaction with a registered database.
type TargetConfig struct {
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration `koanf:"query_timeout"   yaml:"query_timeout"`
	IndexTimeout   time.Duration `koanf:"index_timeout"   yaml:"index_timeout"`
	PreviewLimit   int           `koanf:"preview_limit"   yaml:"preview_limit"`
}

type CacheConfig struct {
	// MaxEntries of 0 disables the catalog read cache.
	MaxEntries int64         `koanf:"max_entries" yaml:"max_entries"`
	TTL        time.Duration `koanf:"ttl"         yaml:"ttl"`
}

type LLMConfig struct {
	Provider string        `koanf:"provider" yaml:"provider"`
	APIKey   string        `koanf:"api_key"  yaml:"api_key"`
	BaseURL  string        `koanf:"base_url" yaml:"base_url"`
	Model    string        `koanf:"model"    yaml:"model"`
	Timeout  time.Duration `koanf:"timeout"  yaml:"timeout"`
}

type ArchiveConfig struct {
	Enabled   bool          `koanf:"enabled"    yaml:"enabled"`
	Endpoint  string        `koanf:"endpoint"   yaml:"endpoint"`
	AccessKey string        `koanf:"access_key" yaml:"access_key"`
	SecretKey string        `koanf:"secret_key" yaml:"secret_key"`
	UseSSL    bool          `koanf:"use_ssl"    yaml:"use_ssl"`
	Region    string        `koanf:"region"     yaml:"region"`
	Bucket    string        `koanf:"bucket"     yaml:"bucket"`
	URLTTL    time.Duration `koanf:"url_ttl"    yaml:"url_ttl"`
}

// defaults seeds the koanf instance before any other provider.
func defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "5m",
		"server.shutdown_timeout": "10s",
		"server.cors_origins":     []string{},
		"catalog.path":            "sqlpilot.db",
		"log.level":               "info",
		"log.format":              "json",
		"target.connect_timeout":  "10s",
		"target.query_timeout":    "60s",
		"target.index_timeout":    "5m",
		"target.preview_limit":    50,
		"cache.max_entries":       1024,
		"cache.ttl":               "5m",
		"llm.provider":            "openai",
		"llm.timeout":             "60s",
		"archive.enabled":         false,
		"archive.bucket":          "sqlpilot-exports",
		"archive.url_ttl":         "1h",
	}
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.LLM.APIKey = mask(cp.LLM.APIKey)
	cp.Archive.SecretKey = mask(cp.Archive.SecretKey)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
