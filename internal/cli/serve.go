package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/sqlpilot/internal/config"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/logger"
	"github.com/koustreak/sqlpilot/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Start the HTTP API on server.addr.

Natural-language routes are disabled when the LLM provider is not usable,
and export archiving is disabled unless archive.enabled is set. When a config
file is in use, edits to its log level are applied without a restart.`,
		Example: `  sqlpilot serve --addr :9090
  SQLPILOT_LOG__LEVEL=debug sqlpilot serve --cors-origin http://localhost:5173`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFrom(cmd.Context()), cmd.Flags())
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable)")
	cmd.Flags().String("llm-provider", "", "LLM provider (openai|ollama)")
	cmd.Flags().String("llm-model", "", "LLM model name")

	return cmd
}

type flagSet interface {
	Changed(name string) bool
}

func runServe(ctx context.Context, e *env, flags flagSet) error {
	a, err := openApp(ctx, e)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Store:    a.store,
		Indexer:  a.indexer,
		Executor: a.executor,
	}

	tr, err := a.translator()
	switch {
	case err == nil:
		deps.Translator = tr
	case errs.IsUnavailable(err):
		e.log.WarnWith("natural-language queries disabled", err, nil)
	default:
		return err
	}

	arch, err := a.archiver(ctx)
	if err != nil {
		return err
	}
	deps.Archiver = arch

	sc := e.cfg.Server
	srv := server.New(server.Config{
		Addr:            sc.Addr,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		CORSOrigins:     sc.CORSOrigins,
	}, deps, e.log.With().Str("component", "server").Logger())

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Serve(egctx)
	})

	if path := e.cfg.FileUsed; path != "" {
		eg.Go(func() error {
			return config.Watch(egctx, path, func() (*config.Config, error) {
				return config.Load(path, nil)
			}, func(c *config.Config, err error) {
				if err != nil {
					e.log.WarnWith("config reload failed", err, map[string]interface{}{"file": path})
					return
				}
				// Flags outrank the file.
				if flags.Changed("log-level") {
					return
				}
				logger.SetLevel(c.Log.Level)
				e.log.InfoWith("log level updated", map[string]interface{}{"level": c.Log.Level})
			})
		})
	}

	return eg.Wait()
}
