// Package quack routes PostgreSQL tables declared with the quack table
// access method into an embedded DuckDB database.
//
// Rows inserted into a quack table are appended to a DuckDB file owned by the
// host database (<data_dir>/<database_oid>.duckdb). Reads that touch only
// quack tables are executed by DuckDB and streamed back to the host in its
// own tuple format. Engine writes follow host transactions: a subtransaction
// commit merges its pending rows into the parent, an abort discards them, and
// the top-level commit or rollback finalizes everything.
//
// # Architecture
//
// The host is reached through a small contract (pkg/host): relation and type
// lookups, advisory locks, executor and utility hook chains, and
// transaction callbacks. Two hosts implement it:
//
//	pkg/host/memhost  - in-process host with savepoints, used by tests and the CLI
//	pkg/host/pghost   - a live PostgreSQL server reached through pgx
//
// # Quick Start
//
//	cfg := config.NewDefaultConfig()
//	cfg.DataDir = "/var/lib/quack"
//
//	drv := engine.NewDuckDBDriver(cfg.Engine.Threads, cfg.Engine.MemoryLimit)
//	ext, err := quack.New(cfg, drv, logger.Get())
//	if err != nil {
//	    return err
//	}
//
//	s := memhost.New(16384).Connect("backend-1")
//	if _, err := ext.Install(s.Backend()); err != nil {
//	    return err
//	}
//	err = s.CreateTable(ctx, &host.CreateStmt{
//	    Name:         "t1",
//	    AccessMethod: "quack",
//	    Columns:      []host.ColumnDef{{Name: "a", TypeName: "integer"}},
//	})
//
// # Key Packages
//
//	pkg/quack        - Extension and per-session API
//	pkg/host         - Host contract: OIDs, datums, tuples, hooks, locks
//	pkg/columnar     - Arrow, Parquet and JSON result sinks
//	pkg/compression  - Compressed export streams
//	pkg/config       - Configuration and data directory checks
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus collectors
//	internal/engine  - Engine opener, DuckDB driver, in-memory test driver
//	internal/bridge  - Host and engine value conversions
//	internal/hooks   - Executor and DDL interceptors
//
// # Configuration
//
//	data_dir: /var/lib/quack
//	access_method: quack
//	engine:
//	  threads: 4
//	  memory_limit: 2GB
//	observability:
//	  enable_metrics: true
//	  metrics_addr: ":9187"
//
// Environment variables are supported with ${VAR_NAME} syntax.
//
// # Development
//
//	go test -short ./...   # unit tests
//	go test ./...          # also DuckDB and PostgreSQL integration tests
package quack
