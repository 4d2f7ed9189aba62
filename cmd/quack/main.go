package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/internal/hooks"
	"github.com/ajitpratap0/quack/pkg/config"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/host/memhost"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/observability"
	"github.com/ajitpratap0/quack/pkg/quack"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	logLevel   string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "quack",
		Short: "quack - columnar storage for PostgreSQL tables",
		Long: `quack stores tables created with the quack access method in an embedded
DuckDB database, one file per PostgreSQL database. This tool inspects the
configuration, previews engine DDL and queries the engine files directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = logger.Sync()
			return observability.Shutdown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "quack v%s\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
				fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		newCheckCommand(a),
		newDDLCommand(a),
		newQueryCommand(a),
		newServeMetricsCommand(a),
	)
	return root
}

func (a *app) setup() error {
	cfg := config.NewDefaultConfig()
	if a.configFile != "" {
		loaded, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.log = logger.Get()
	return observability.Initialize(cfg.Observability, version)
}

// extension creates a quack extension over the DuckDB driver.
func (a *app) extension() (*quack.Extension, error) {
	drv := engine.NewDuckDBDriver(a.cfg.Engine.Threads, a.cfg.Engine.MemoryLimit)
	return quack.New(a.cfg, drv, a.log)
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := a.cfg.CheckDataDirectory(); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "data directory %s is ready\n", a.cfg.DataDir)
			return nil
		},
	}
}

func newDDLCommand(a *app) *cobra.Command {
	var (
		columns     []string
		ifNotExists bool
	)
	cmd := &cobra.Command{
		Use:   "ddl TABLE",
		Short: "Print the engine DDL for a table definition",
		Long: `Translate a host column list into the CREATE TABLE statement quack runs in
the engine. Columns are given as name:type with PostgreSQL type names.

Example:
  quack ddl events --column id:bigint --column name:text --column at:timestamp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := translateDDL(cmd.Context(), args[0], columns, ifNotExists)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Column as name:type (repeatable)")
	cmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Emit IF NOT EXISTS")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

// translateDDL resolves PostgreSQL type names with the built-in type table
// and builds the engine statement.
func translateDDL(ctx context.Context, table string, columns []string, ifNotExists bool) (string, error) {
	defs := make([]host.ColumnDef, 0, len(columns))
	for _, col := range columns {
		name, typeName, ok := strings.Cut(col, ":")
		if !ok || name == "" || typeName == "" {
			return "", fmt.Errorf("column %q must be name:type", col)
		}
		defs = append(defs, host.ColumnDef{Name: name, TypeName: typeName})
	}
	engineCols, err := hooks.TranslateColumns(ctx, memhost.New(host.InvalidOID), defs)
	if err != nil {
		return "", err
	}
	return hooks.BuildCreateTable(table, engineCols, ifNotExists), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
