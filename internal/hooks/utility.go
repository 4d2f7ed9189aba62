package hooks

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/bridge"
	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/observability"
)

// EngineColumn is one column of an engine CREATE TABLE.
type EngineColumn struct {
	Name string
	Type string
}

// BuildCreateTable renders an engine CREATE TABLE statement. Identifiers are
// always quoted.
func BuildCreateTable(table string, columns []EngineColumn, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteIdent(table))
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(col.Name))
		b.WriteByte(' ')
		b.WriteString(col.Type)
	}
	b.WriteString(")")
	return b.String()
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TranslateColumns resolves each column's host type and maps it to its
// engine type, keeping declaration order.
func TranslateColumns(ctx context.Context, types host.TypeResolver, columns []host.ColumnDef) ([]EngineColumn, error) {
	out := make([]EngineColumn, len(columns))
	for i, col := range columns {
		oid, err := types.ResolveType(ctx, col.TypeName)
		if err != nil {
			return nil, err
		}
		engineType, err := bridge.TypeName(oid)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return nil, e.WithDetail("column", col.Name).WithDetail("type_name", col.TypeName)
			}
			return nil, err
		}
		out[i] = EngineColumn{Name: col.Name, Type: engineType}
	}
	return out, nil
}

// UtilityInterceptor mirrors CREATE TABLE ... USING <access method> into the
// engine. It never handles the statement itself, so the host still creates
// its catalog entry.
type UtilityInterceptor struct {
	accessMethod string
	types        host.TypeResolver
	connector    Connector
	locker       host.AdvisoryLocker
	dbID         host.OID
	logger       *zap.Logger
}

// NewUtilityInterceptor creates an interceptor for one host database.
func NewUtilityInterceptor(accessMethod string, types host.TypeResolver, connector Connector, locker host.AdvisoryLocker, dbID host.OID, log *zap.Logger) *UtilityInterceptor {
	if log == nil {
		log = logger.Get()
	}
	return &UtilityInterceptor{
		accessMethod: accessMethod,
		types:        types,
		connector:    connector,
		locker:       locker,
		dbID:         dbID,
		logger:       log.With(zap.String("component", "utility_interceptor")),
	}
}

// ProcessUtility implements host.ProcessUtilityHandler.
func (u *UtilityInterceptor) ProcessUtility(ctx context.Context, stmt host.UtilityStmt, queryString string) (bool, error) {
	create, ok := stmt.(*host.CreateStmt)
	if !ok || create.AccessMethod != u.accessMethod {
		return false, nil
	}

	columns, err := TranslateColumns(ctx, u.types, create.Columns)
	if err != nil {
		return false, err
	}
	ddl := BuildCreateTable(create.Name, columns, create.IfNotExists)

	err = observability.Trace(ctx, "utility.create_table", func(ctx context.Context) error {
		return u.connector.WithConnection(ctx, u.locker, u.dbID, true, func(ctx context.Context, conn engine.Conn) error {
			return conn.Exec(ctx, ddl)
		})
	})
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return false, err
		}
		return false, errors.Wrap(err, errors.ErrorTypeQueryExecution, fmt.Sprintf("failed to create engine table %s", create.Name)).
			WithDetail("ddl", ddl).
			WithDetail("engine_error", err.Error())
	}

	u.logger.Debug("created engine table", zap.String("table", create.Name), zap.String("ddl", ddl))
	return false, nil
}
