package config

import (
	"time"

	"go.yaml.in/yaml/v3"
)

// YAML renders the configuration in the layout the config file uses, with
// durations written as "15s" rather than nanoseconds. Call it on a
// Redacted copy before printing.
func (c *Config) YAML() ([]byte, error) {
	d := func(v time.Duration) string { return v.String() }

	cors := c.Server.CORSOrigins
	if cors == nil {
		cors = []string{}
	}

	return yaml.Marshal(map[string]any{
		"server": map[string]any{
			"addr":             c.Server.Addr,
			"read_timeout":     d(c.Server.ReadTimeout),
			"write_timeout":    d(c.Server.WriteTimeout),
			"shutdown_timeout": d(c.Server.ShutdownTimeout),
			"cors_origins":     cors,
		},
		"catalog": map[string]any{
			"path": c.Catalog.Path,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"target": map[string]any{
			"connect_timeout": d(c.Target.ConnectTimeout),
			"query_timeout":   d(c.Target.QueryTimeout),
			"index_timeout":   d(c.Target.IndexTimeout),
			"preview_limit":   c.Target.PreviewLimit,
		},
		"cache": map[string]any{
			"max_entries": c.Cache.MaxEntries,
			"ttl":         d(c.Cache.TTL),
		},
		"llm": map[string]any{
			"provider": c.LLM.Provider,
			"api_key":  c.LLM.APIKey,
			"base_url": c.LLM.BaseURL,
			"model":    c.LLM.Model,
			"timeout":  d(c.LLM.Timeout),
		},
		"archive": map[string]any{
			"enabled":    c.Archive.Enabled,
			"endpoint":   c.Archive.Endpoint,
			"access_key": c.Archive.AccessKey,
			"secret_key": c.Archive.SecretKey,
			"use_ssl":    c.Archive.UseSSL,
			"region":     c.Archive.Region,
			"bucket":     c.Archive.Bucket,
			"url_ttl":    d(c.Archive.URLTTL),
		},
	})
}
