// Package nl turns natural-language questions into SQL with an
// OpenAI-compatible chat model (OpenAI itself, or Ollama).
package nl

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/export"
	"github.com/koustreak/sqlpilot/internal/logger"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects the model endpoint.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// Translation is the model's answer. ExportFormat is empty unless the
// question asked for a file.
type Translation struct {
	SQL          string        `json:"sql"`
	ExportFormat export.Format `json:"export_format,omitempty"`
}

// Translator generates SQL for a connection from its indexed schema. The
// SQL it returns is untrusted and must go through the query executor.
type Translator struct {
	store  catalog.Store
	client *openai.Client
	model  string
	log    *logger.Logger
}

// New builds a Translator. It fails with ErrKindUnavailable when the
// provider cannot be used as configured.
func New(store catalog.Store, cfg Config, log *logger.Logger) (*Translator, error) {
	if log == nil {
		log = logger.Nop()
	}

	var cc openai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		// Ollama ignores the key but the client requires one.
		cc = openai.DefaultConfig("ollama")
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, errs.New(errs.ErrKindUnavailable,
				"OPENAI_API_KEY is not set; configure llm.api_key or use llm.provider=ollama")
		}
		cc = openai.DefaultConfig(cfg.APIKey)
	default:
		return nil, errs.Newf(errs.ErrKindUnavailable, "unknown llm provider %q", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Translator{
		store:  store,
		client: openai.NewClientWithConfig(cc),
		model:  cfg.Model,
		log:    log,
	}, nil
}

// Translate asks the model for SQL answering question against connID's
// schema. A connection without indexed tables is ErrKindNotIndexed.
func (t *Translator) Translate(ctx context.Context, connID int64, question string) (*Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question is required")
	}

	conn, err := t.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}
	tables, err := t.store.GetTables(ctx, connID)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, errs.Newf(errs.ErrKindNotIndexed,
			"no schema metadata found for connection %d; index it first", connID)
	}

	dialect := database.DialectPostgres
	if d, ok := database.ParseDriver(conn.DBType); ok {
		dialect = d.Dialect()
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(tables, dialect.String())},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		// Effectively zero for deterministic output; a literal 0 is dropped
		// by omitempty and the provider default applies.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errs.New(errs.ErrKindUnavailable, "model returned no choices")
	}

	tr, ok := parseReply(resp.Choices[0].Message.Content)
	if !ok {
		t.log.Warn("model did not return valid JSON; using the raw reply as SQL")
	}
	if tr.SQL == "" {
		return nil, errs.New(errs.ErrKindUnavailable, "model returned no SQL")
	}
	return tr, nil
}

// reply is the JSON object the prompt asks for.
type reply struct {
	SQL          string  `json:"sql"`
	ExportFormat *string `json:"export_format"`
}

// parseReply strips markdown fences and decodes the JSON reply. When the
// content is not JSON it is taken as raw SQL and ok is false.
func parseReply(content string) (*Translation, bool) {
	content = stripFences(strings.TrimSpace(content))

	var r reply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return &Translation{SQL: strings.TrimSpace(content)}, false
	}

	tr := &Translation{SQL: strings.TrimSpace(r.SQL)}
	if r.ExportFormat != nil {
		if f, err := export.ParseFormat(*r.ExportFormat); err == nil {
			tr.ExportFormat = f
		}
	}
	return tr, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func mapError(err error) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, "llm request timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			// A bad server-side key is not the caller's fault.
			return errs.Wrap(errs.ErrKindUnavailable, "llm rejected credentials: "+apiErr.Message, err)
		}
		return errs.Wrap(errs.ErrKindUnavailable, "llm request failed: "+apiErr.Message, err)
	}
	return errs.Wrap(errs.ErrKindUnavailable, "llm request failed", err)
}
