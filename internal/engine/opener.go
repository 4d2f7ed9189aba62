package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/metrics"
	"github.com/ajitpratap0/quack/pkg/observability"
)

// FileExtension is appended to the host database id to form the file name.
const FileExtension = ".duckdb"

// DB is an engine database opened for one host database.
type DB struct {
	Database
	// ID is the host database id the file belongs to.
	ID host.OID
	// Path is the engine file.
	Path string
	// PreserveInsertOrder is applied to every connection opened from DB.
	PreserveInsertOrder bool
}

// Opener opens engine databases, connections and appenders for host
// databases, one file per database under a data directory.
type Opener struct {
	driver  Driver
	dataDir string
	logger  *zap.Logger
}

// NewOpener creates an opener storing files under dataDir.
func NewOpener(driver Driver, dataDir string, log *zap.Logger) *Opener {
	if log == nil {
		log = logger.Get()
	}
	return &Opener{
		driver:  driver,
		dataDir: dataDir,
		logger:  log.With(zap.String("component", "engine_opener")),
	}
}

// DatabasePath returns <data_dir>/<dbID>.duckdb.
func (o *Opener) DatabasePath(dbID host.OID) string {
	return filepath.Join(o.dataDir, fmt.Sprintf("%d%s", uint32(dbID), FileExtension))
}

// OpenDatabase takes the advisory lock keyed by dbID, then opens or creates
// the database file. The lock serializes engine access to the file across
// host sessions until the host transaction ends.
func (o *Opener) OpenDatabase(ctx context.Context, locker host.AdvisoryLocker, dbID host.OID, preserveInsertOrder bool) (*DB, error) {
	path := o.DatabasePath(dbID)

	ctx, span := observability.StartSpan(ctx, "engine.open_database")
	defer span.End()
	span.SetAttribute("database_id", uint32(dbID))
	span.SetAttribute("path", path)

	if err := locker.AdvisoryXactLock(ctx, int64(dbID)); err != nil {
		span.RecordError(err)
		return nil, countError(errors.Wrap(err, errors.ErrorTypeLock, "failed to lock database").
			WithDetail("database_id", uint32(dbID)))
	}

	db, err := o.driver.Open(ctx, path)
	if err != nil {
		span.RecordError(err)
		return nil, countError(errors.Wrap(err, errors.ErrorTypeEngineOpen, fmt.Sprintf("failed to open %s", path)).
			WithDetail("database_id", uint32(dbID)).
			WithDetail("engine_error", err.Error()))
	}

	o.logger.Debug("opened engine database",
		zap.Uint32("database_id", uint32(dbID)),
		zap.String("path", path),
		zap.Bool("preserve_insert_order", preserveInsertOrder))

	return &DB{Database: db, ID: dbID, Path: path, PreserveInsertOrder: preserveInsertOrder}, nil
}

// OpenConnection opens one connection to db and applies its insertion order
// setting.
func (o *Opener) OpenConnection(ctx context.Context, db *DB) (Conn, error) {
	conn, err := db.Connect(ctx)
	if err != nil {
		return nil, countError(errors.Wrap(err, errors.ErrorTypeEngineConnect, fmt.Sprintf("failed to connect to %s", db.Path)).
			WithDetail("database_id", uint32(db.ID)).
			WithDetail("engine_error", err.Error()))
	}

	setting := fmt.Sprintf("SET preserve_insertion_order = %t", db.PreserveInsertOrder)
	if err := conn.Exec(ctx, setting); err != nil {
		_ = conn.Close()
		return nil, countError(errors.Wrap(err, errors.ErrorTypeEngineConnect, "failed to configure connection").
			WithDetail("database_id", uint32(db.ID)).
			WithDetail("engine_error", err.Error()))
	}

	return conn, nil
}

// CreateAppender binds an appender to table, which must already exist.
func (o *Opener) CreateAppender(ctx context.Context, conn Conn, table string) (Appender, error) {
	app, err := conn.NewAppender(ctx, table)
	if err != nil {
		return nil, countError(errors.Wrap(err, errors.ErrorTypeAppenderCreate, fmt.Sprintf("failed to create appender for %s", table)).
			WithDetail("table", table).
			WithDetail("engine_error", err.Error()))
	}
	return app, nil
}

// WithConnection opens a transient database and connection for dbID, runs fn
// and closes both. Nothing is cached.
func (o *Opener) WithConnection(ctx context.Context, locker host.AdvisoryLocker, dbID host.OID, preserveInsertOrder bool, fn func(ctx context.Context, conn Conn) error) (err error) {
	db, err := o.OpenDatabase(ctx, locker, dbID, preserveInsertOrder)
	if err != nil {
		return err
	}
	conn, err := o.OpenConnection(ctx, db)
	if err != nil {
		return unwrapSingle(multierror.Append(err, db.Close()))
	}

	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		if cerr := conn.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		if cerr := db.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		err = unwrapSingle(result)
	}()

	return fn(ctx, conn)
}

// unwrapSingle keeps a lone error's identity instead of wrapping it in a
// one-element multierror.
func unwrapSingle(result *multierror.Error) error {
	if result == nil {
		return nil
	}
	if len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result
}

func countError(err *errors.Error) error {
	metrics.EngineErrors.WithLabelValues(string(err.Type)).Inc()
	return err
}
