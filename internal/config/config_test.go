package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with the legacy variables cleared.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{"OPENAI_API_KEY", "LLM_PROVIDER", "OLLAMA_BASE_URL", "OLLAMA_MODEL", "METADATA_DB_URL"} {
		t.Setenv(name, "")
	}
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlpilot.db", cfg.Catalog.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.Target.QueryTimeout)
	assert.Equal(t, 50, cfg.Target.PreviewLimit)
	assert.Equal(t, int64(1024), cfg.Cache.MaxEntries)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.LLM.Model)
	assert.False(t, cfg.Archive.Enabled)
	assert.Empty(t, cfg.FileUsed)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, DefaultFileName), `
server:
  addr: ":9000"
log:
  level: debug
catalog:
  path: from-file.db
llm:
  provider: ollama
`)

	t.Setenv("SQLPILOT_LOG__LEVEL", "warn")
	t.Setenv("SQLPILOT_TARGET__QUERY_TIMEOUT", "5s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog", "", "")
	flags.String("addr", "", "")
	require.NoError(t, flags.Parse([]string{"--catalog", "from-flag.db"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, DefaultFileName, cfg.FileUsed)
	assert.Equal(t, ":9000", cfg.Server.Addr, "file beats defaults; unchanged flag is ignored")
	assert.Equal(t, "warn", cfg.Log.Level, "env beats file")
	assert.Equal(t, 5*time.Second, cfg.Target.QueryTimeout)
	assert.Equal(t, "from-flag.db", cfg.Catalog.Path, "flag beats file")
	assert.Equal(t, DefaultOllamaBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, DefaultOllamaModel, cfg.LLM.Model)
}

func TestLoad_LegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("METADATA_DB_URL", "sqlite:///./legacy.db")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "./legacy.db", cfg.Catalog.Path)
	assert.Equal(t, "********", cfg.Redacted().LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey, "Redacted must not mutate the original")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "SQLPILOT_SERVER__ADDR=:7070\n")
	t.Setenv("SQLPILOT_SERVER__ADDR", "")
	require.NoError(t, os.Unsetenv("SQLPILOT_SERVER__ADDR"))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		arg  string
	}{
		{name: "missing explicit file", arg: "nope.yaml"},
		{name: "bad provider", env: map[string]string{"SQLPILOT_LLM__PROVIDER": "bard"}},
		{name: "archive without endpoint", file: "archive:\n  enabled: true\n"},
		{name: "malformed yaml", file: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			if tt.file != "" {
				writeFile(t, filepath.Join(dir, DefaultFileName), tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(tt.arg, nil)
			assert.Error(t, err)
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, DefaultFileName)
	writeFile(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() (*Config, error) { return Load(path, nil) }, func(c *Config, err error) {
			if err == nil {
				got <- c
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "log:\n  level: debug\n")

	select {
	case c := <-got:
		assert.Equal(t, "debug", c.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestYAML_Redacted(t *testing.T) {
	isolate(t)
	t.Setenv("SQLPILOT_LLM__API_KEY", "sk-secret")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	out, err := cfg.Redacted().YAML()
	require.NoError(t, err)

	s := string(out)
	assert.NotContains(t, s, "sk-secret")
	assert.Contains(t, s, "********")
	assert.Contains(t, s, "read_timeout: 15s")
	assert.Contains(t, s, "query_timeout: 1m0s")
}
