package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/indexer"
	"github.com/koustreak/sqlpilot/internal/validator"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display sqlpilot version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlpilot v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commit %s, built %s\n", GitCommit, BuildDate)
		},
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check whether a statement would be allowed to run",
		Long: `Parse the statement and report whether it contains DROP, DELETE, ALTER,
UPDATE, INSERT or CREATE anywhere, including inside CTEs and subqueries.
Text is read with the lexical rules of --dialect, so MySQL backticks and
# comments are understood and comment tricks the target reads differently
are refused. Exits non-zero when the statement is rejected.`,
		Example: `  sqlpilot validate "SELECT * FROM users"
  sqlpilot validate --dialect mysql "SELECT name FROM users LIMIT 5, 10 # page 2"
  sqlpilot validate "WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, ok := database.ParseDriver(dialect)
			if !ok {
				return errs.Newf(errs.ErrKindInvalidInput, "unsupported dialect %q (use postgres, mysql or sqlite)", dialect)
			}
			v := validator.CheckFor(driver.Dialect(), args[0])
			out := cmd.OutOrStdout()
			if v.Safe {
				_, _ = color.New(color.FgGreen, color.Bold).Fprint(out, "SAFE")
				_, _ = fmt.Fprintf(out, " (%d statement(s))\n", v.Statements)
				return nil
			}
			_, _ = color.New(color.FgRed, color.Bold).Fprint(out, "REJECTED")
			_, _ = fmt.Fprintf(out, " %s\n", v.Reason)
			return errs.New(errs.ErrKindRejected, v.Reason)
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", string(database.DriverPostgres), "Target dialect (postgres|mysql|sqlite)")
	_ = cmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"postgres", "mysql", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// NewConnectionsCommand creates the connections command group.
func NewConnectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage registered databases",
	}
	cmd.AddCommand(newConnectionsAddCommand(), newConnectionsListCommand(), newConnectionsRemoveCommand())
	return cmd
}

func newConnectionsAddCommand() *cobra.Command {
	var (
		name    string
		dbType  string
		url     string
		noIndex bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a database and index its schema",
		Example: `  sqlpilot connections add --name shop --type postgres --url postgres://u:p@localhost/shop
  sqlpilot connections add --name local --type sqlite --url sqlite:///data/app.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := a.store.CreateConnection(cmd.Context(), catalog.ConnectionInput{
				Name: name, DBType: dbType, ConnectionURL: url,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "connection %d registered\n", conn.ID)

			if noIndex {
				return nil
			}
			report, err := a.indexer.Index(cmd.Context(), conn.ID)
			if err != nil {
				return fmt.Errorf("connection %d registered but indexing failed: %w", conn.ID, err)
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&dbType, "type", "", "Database type (postgres|mysql|sqlite)")
	cmd.Flags().StringVar(&url, "url", "", "Connection URL")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Skip the initial schema index")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newConnectionsListCommand() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered databases",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			conns, err := a.store.ListConnections(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			if len(conns) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no connections registered")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Type", "Created"})
			for _, c := range conns {
				t.AppendRow(table.Row{c.ID, c.Name, c.DBType, c.CreatedAt.Format("2006-01-02 15:04")})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of connections to skip")
	cmd.Flags().IntVar(&limit, "limit", catalog.DefaultListLimit, "Maximum number of connections")
	return cmd
}

func newConnectionsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a database and its indexed schema",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteConnection(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "connection %d removed\n", id)
			return nil
		},
	}
}

// NewIndexCommand creates the index command.
func NewIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index <connection-id>",
		Short: "Re-index a registered database",
		Long: `Read every table, column and foreign key of the database and replace the
catalog entries for it. On failure the previous entries are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.indexer.Index(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query <connection-id> <sql>",
		Short: "Run a read-only statement",
		Example: `  sqlpilot query 1 "SELECT id, name FROM users LIMIT 5"
  sqlpilot query 1 "SELECT * FROM orders" --format csv > orders.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.executor.Execute(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format (table|csv|json)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "csv", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	var (
		run    bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "ask <connection-id> <question>",
		Short: "Translate a question into SQL",
		Long: `Ask the configured LLM for SQL answering the question against the indexed
schema. With --run the statement is validated and executed like any other.`,
		Example: `  sqlpilot ask 1 "how many orders per user?" --run`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), envFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer a.Close()

			tr, err := a.translator()
			if err != nil {
				return err
			}
			t, err := tr.Translate(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, t.SQL)
			if t.ExportFormat != "" {
				_, _ = color.New(color.FgCyan).Fprintf(out, "suggested export format: %s\n", t.ExportFormat)
			}
			if !run {
				return nil
			}

			res, err := a.executor.Execute(cmd.Context(), id, t.SQL)
			if err != nil {
				return err
			}
			if format == "" && t.ExportFormat != "" {
				format = string(t.ExportFormat)
			}
			return renderResult(out, res, format)
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Execute the generated SQL")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format with --run (table|csv|json)")
	return cmd
}

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after defaults, file, environment and flags are applied. Secrets are masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd.Context())
			out, err := e.cfg.Redacted().YAML()
			if err != nil {
				return err
			}
			if e.cfg.FileUsed != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", e.cfg.FileUsed)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func printReport(cmd *cobra.Command, r *indexer.Report) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d tables, %d columns, %d foreign keys in %s\n",
		r.Tables, r.Columns, r.ForeignKeys, r.Duration.Round(time.Millisecond))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "invalid connection id %q", s)
	}
	return id, nil
}
