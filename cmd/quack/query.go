package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/pkg/columnar"
	"github.com/ajitpratap0/quack/pkg/compression"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/host/memhost"
	"github.com/ajitpratap0/quack/pkg/host/pghost"
	"github.com/ajitpratap0/quack/pkg/quack"
)

// Output formats for the query command.
const (
	formatTable   = "table"
	formatJSON    = "json"
	formatArrow   = "arrow"
	formatParquet = "parquet"
)

// queryOptions selects where a query runs and how its result is written.
type queryOptions struct {
	DatabaseID  uint32
	Format      string
	Output      string
	Compression string
	// ParquetCodec is the in-file parquet compression.
	ParquetCodec string
	BatchSize    int
}

// txnHost is a host session able to wrap a query in a transaction, so the
// engine lock taken by the query is released when it ends.
type txnHost interface {
	Backend() *host.Backend
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

func newQueryCommand(a *app) *cobra.Command {
	opts := queryOptions{}
	var live bool
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a read statement against an engine database file",
		Long: `Run SQL directly in the engine file of one host database and print the
result. With --live the database id and advisory lock come from the
PostgreSQL server named by host.connection_string; otherwise --database
selects the file.

Example:
  quack query --database 16384 --format parquet --output t1.parquet "SELECT * FROM t1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			ext, err := a.extension()
			if err != nil {
				return err
			}

			var session txnHost
			if live {
				pool, err := pghost.Connect(ctx, a.cfg.Host, a.log)
				if err != nil {
					return err
				}
				defer pool.Close()
				s, err := pghost.NewSession(ctx, pool, sessionName())
				if err != nil {
					return err
				}
				defer func() { _ = s.Close(context.Background()) }()
				session = s
			} else {
				if opts.DatabaseID == 0 {
					return fmt.Errorf("--database is required without --live")
				}
				session = memhost.New(host.OID(opts.DatabaseID)).Connect(sessionName())
			}

			out := cmd.OutOrStdout()
			if opts.Output != "" && opts.Output != "-" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			rows, err := runQuery(ctx, ext, session, args[0], opts, out)
			if err != nil {
				return err
			}
			a.log.Info("query finished",
				zap.Uint64("rows", rows),
				zap.String("format", opts.Format),
				zap.Uint32("database_id", uint32(session.Backend().DatabaseID)))
			return nil
		},
	}

	cmd.Flags().Uint32VarP(&opts.DatabaseID, "database", "d", 0, "Host database OID whose engine file is queried")
	cmd.Flags().BoolVar(&live, "live", false, "Resolve the database and take locks through the configured PostgreSQL host")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", formatTable, "Output format (table, json, arrow, parquet)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&opts.Compression, "compress", string(compression.None), "Compress the output stream (none, gzip, snappy, lz4, zstd, s2)")
	cmd.Flags().StringVar(&opts.ParquetCodec, "parquet-codec", "snappy", "Parquet page compression")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 10000, "Rows per Arrow record batch or Parquet row group")
	return cmd
}

// runQuery installs ext into session, runs sql in its own transaction and
// writes the result to w.
func runQuery(ctx context.Context, ext *quack.Extension, session txnHost, sql string, opts queryOptions, w io.Writer) (uint64, error) {
	qs, err := ext.Install(session.Backend())
	if err != nil {
		return 0, err
	}

	alg, err := compression.ParseAlgorithm(opts.Compression)
	if err != nil {
		return 0, err
	}
	cw, err := compression.NewWriter(w, alg, compression.Default)
	if err != nil {
		return 0, err
	}

	dest, err := newSink(opts, cw)
	if err != nil {
		return 0, err
	}

	if err := session.Begin(ctx); err != nil {
		return 0, err
	}
	rows, err := qs.ExecuteQuery(ctx, sql, dest)
	if err != nil {
		if rbErr := session.Rollback(ctx); rbErr != nil {
			return 0, multierror.Append(err, rbErr)
		}
		return 0, err
	}
	if err := session.Commit(ctx); err != nil {
		return rows, err
	}
	return rows, cw.Close()
}

// sessionName labels the CLI's backend in logs.
func sessionName() string {
	return "quack-cli-" + uuid.NewString()
}

func newSink(opts queryOptions, w io.Writer) (host.DestReceiver, error) {
	switch opts.Format {
	case "", formatTable:
		return newTableSink(w), nil
	case formatJSON:
		return columnar.NewJSONSink(w), nil
	case formatArrow:
		return columnar.NewArrowSink(w, opts.BatchSize), nil
	case formatParquet:
		return columnar.NewParquetSink(w, columnar.ParquetOptions{
			BatchSize:   opts.BatchSize,
			Compression: opts.ParquetCodec,
		}), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
}
