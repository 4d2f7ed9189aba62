package engine

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
)

// DuckDBDriver opens DuckDB database files. Each file is opened once per
// process and shared, reference counted, by every Database handle for it:
// DuckDB does not allow the same file to be opened twice by one process.
type DuckDBDriver struct {
	threads     int
	memoryLimit string

	mu        sync.Mutex
	instances map[string]*duckInstance
}

type duckInstance struct {
	connector *duckdb.Connector
	refs      int
}

// NewDuckDBDriver creates a driver. Zero threads or an empty memory limit
// keep DuckDB's defaults.
func NewDuckDBDriver(threads int, memoryLimit string) *DuckDBDriver {
	return &DuckDBDriver{
		threads:     threads,
		memoryLimit: memoryLimit,
		instances:   make(map[string]*duckInstance),
	}
}

func (d *DuckDBDriver) dsn(path string) string {
	params := url.Values{}
	if d.threads > 0 {
		params.Set("threads", strconv.Itoa(d.threads))
	}
	if d.memoryLimit != "" {
		params.Set("memory_limit", d.memoryLimit)
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// Open implements Driver.
func (d *DuckDBDriver) Open(ctx context.Context, path string) (Database, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inst, ok := d.instances[path]
	if !ok {
		connector, err := duckdb.NewConnector(d.dsn(path), nil)
		if err != nil {
			return nil, err
		}
		inst = &duckInstance{connector: connector}
		d.instances[path] = inst
	}
	inst.refs++

	return &duckDatabase{driver: d, path: path, inst: inst}, nil
}

// OpenInstances returns the number of files currently open.
func (d *DuckDBDriver) OpenInstances() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.instances)
}

func (d *DuckDBDriver) release(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	inst, ok := d.instances[path]
	if !ok {
		return nil
	}
	inst.refs--
	if inst.refs > 0 {
		return nil
	}
	delete(d.instances, path)
	return inst.connector.Close()
}

type duckDatabase struct {
	driver *DuckDBDriver
	path   string
	inst   *duckInstance
	once   sync.Once
}

func (db *duckDatabase) Connect(ctx context.Context) (Conn, error) {
	c, err := db.inst.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &duckConn{conn: c}, nil
}

func (db *duckDatabase) Close() error {
	var err error
	db.once.Do(func() {
		err = db.driver.release(db.path)
	})
	return err
}

type duckConn struct {
	conn driver.Conn
}

func (c *duckConn) Exec(ctx context.Context, query string) error {
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return fmt.Errorf("duckdb connection does not support ExecContext")
	}
	_, err := execer.ExecContext(ctx, query, nil)
	return err
}

func (c *duckConn) Query(ctx context.Context, query string) (Rows, error) {
	queryer, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, fmt.Errorf("duckdb connection does not support QueryContext")
	}
	rows, err := queryer.QueryContext(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return newDuckRows(rows), nil
}

func (c *duckConn) NewAppender(ctx context.Context, table string) (Appender, error) {
	app, err := duckdb.NewAppenderFromConn(c.conn, "", table)
	if err != nil {
		return nil, err
	}
	return &duckAppender{app: app}, nil
}

func (c *duckConn) Close() error {
	return c.conn.Close()
}

type duckRows struct {
	rows    driver.Rows
	columns []Column
	raw     []driver.Value
	current []interface{}
	err     error
}

func newDuckRows(rows driver.Rows) *duckRows {
	names := rows.Columns()
	columns := make([]Column, len(names))
	typed, hasTypes := rows.(driver.RowsColumnTypeDatabaseTypeName)
	for i, name := range names {
		columns[i] = Column{Name: name}
		if hasTypes {
			columns[i].TypeName = typed.ColumnTypeDatabaseTypeName(i)
		}
	}
	return &duckRows{
		rows:    rows,
		columns: columns,
		raw:     make([]driver.Value, len(names)),
		current: make([]interface{}, len(names)),
	}
}

func (r *duckRows) Columns() []Column { return r.columns }

func (r *duckRows) Next() bool {
	if r.err != nil {
		return false
	}
	if err := r.rows.Next(r.raw); err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	for i, v := range r.raw {
		r.current[i] = normalizeDuckValue(r.columns[i].TypeName, v)
	}
	return true
}

func (r *duckRows) Value(col int) interface{} { return r.current[col] }

func (r *duckRows) Err() error { return r.err }

func (r *duckRows) Close() error { return r.rows.Close() }

// normalizeDuckValue maps go-duckdb result values onto the engine value types.
func normalizeDuckValue(typeName string, v driver.Value) interface{} {
	switch val := v.(type) {
	case time.Time:
		switch strings.ToUpper(typeName) {
		case "DATE":
			return DateFromTime(val)
		case "TIMESTAMP", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
			return TimestampFromTime(val)
		}
		return val
	case duckdb.Decimal:
		return Decimal{Value: val.Value, Scale: val.Scale}
	default:
		return v
	}
}

// duckAppender buffers one row and hands it to DuckDB on EndRow, so a
// discarded row never reaches the engine.
type duckAppender struct {
	app *duckdb.Appender
	row []driver.Value
}

func (a *duckAppender) AppendNull() error {
	a.row = append(a.row, nil)
	return nil
}

func (a *duckAppender) AppendBool(v bool) error {
	a.row = append(a.row, v)
	return nil
}

func (a *duckAppender) AppendInt8(v int8) error {
	a.row = append(a.row, v)
	return nil
}

func (a *duckAppender) AppendInt16(v int16) error {
	a.row = append(a.row, v)
	return nil
}

func (a *duckAppender) AppendInt32(v int32) error {
	a.row = append(a.row, v)
	return nil
}

func (a *duckAppender) AppendInt64(v int64) error {
	a.row = append(a.row, v)
	return nil
}

func (a *duckAppender) AppendVarchar(v []byte) error {
	a.row = append(a.row, string(v))
	return nil
}

func (a *duckAppender) AppendDate(v Date) error {
	a.row = append(a.row, v.Time())
	return nil
}

func (a *duckAppender) AppendTimestamp(v Timestamp) error {
	a.row = append(a.row, v.Time())
	return nil
}

func (a *duckAppender) EndRow() error {
	err := a.app.AppendRow(a.row...)
	a.row = a.row[:0]
	return err
}

func (a *duckAppender) DiscardRow() {
	a.row = a.row[:0]
}

func (a *duckAppender) Flush() error {
	return a.app.Flush()
}

func (a *duckAppender) Close() error {
	a.row = a.row[:0]
	return a.app.Close()
}
