// Package enginetest provides an in-memory engine.Driver for tests. It
// understands the handful of statements quack issues (BEGIN, COMMIT,
// ROLLBACK, SET, CREATE TABLE and simple SELECT lists) and keeps per
// connection transactions so commit and rollback behave like the real engine.
package enginetest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ajitpratap0/quack/internal/engine"
)

// Driver is an in-memory engine. Files live for the lifetime of the Driver.
type Driver struct {
	mu         sync.Mutex
	files      map[string]*file
	statements []string
	openDBs    int
	openConns  int

	// Fault injection; set before use.
	OpenErr    error
	ConnectErr error
	QueryErr   error
	// EndRowErr fails EndRow for the named table.
	EndRowErr map[string]error
	// FlushErr fails Flush and Close of appenders for the named table.
	FlushErr map[string]error
}

type file struct {
	tables map[string]*table
}

type table struct {
	name    string
	columns []engine.Column
	rows    [][]interface{}
}

// NewDriver creates an empty in-memory engine.
func NewDriver() *Driver {
	return &Driver{files: make(map[string]*file)}
}

// Open implements engine.Driver.
func (d *Driver) Open(ctx context.Context, path string) (engine.Database, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	f, ok := d.files[path]
	if !ok {
		f = &file{tables: make(map[string]*table)}
		d.files[path] = f
	}
	d.openDBs++
	return &database{driver: d, path: path, file: f}, nil
}

// Statements returns every statement executed so far, in order.
func (d *Driver) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statements...)
}

// Rows returns the committed rows of a table.
func (d *Driver) Rows(path, tableName string) [][]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.files[path]
	if !ok {
		return nil
	}
	t, ok := f.tables[key(tableName)]
	if !ok {
		return nil
	}
	out := make([][]interface{}, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out
}

// Columns returns the declared columns of a table.
func (d *Driver) Columns(path, tableName string) []engine.Column {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.files[path]
	if !ok {
		return nil
	}
	t, ok := f.tables[key(tableName)]
	if !ok {
		return nil
	}
	return append([]engine.Column(nil), t.columns...)
}

// OpenDatabases returns the number of Database handles not yet closed.
func (d *Driver) OpenDatabases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openDBs
}

// OpenConns returns the number of connections not yet closed.
func (d *Driver) OpenConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openConns
}

type database struct {
	driver *Driver
	path   string
	file   *file
	closed bool
}

func (db *database) Connect(ctx context.Context) (engine.Conn, error) {
	d := db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if db.closed {
		return nil, fmt.Errorf("database %s is closed", db.path)
	}
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	d.openConns++
	return &conn{db: db, pending: make(map[string][][]interface{})}, nil
}

func (db *database) Close() error {
	d := db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	d.openDBs--
	return nil
}

type conn struct {
	db      *database
	inTxn   bool
	pending map[string][][]interface{}
	closed  bool
}

var (
	createRe = regexp.MustCompile(`(?is)^\s*create\s+table\s+(if\s+not\s+exists\s+)?("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_.]*)\s*\((.*)\)\s*;?\s*$`)
	selectRe = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_]*)\s*;?\s*$`)
)

func (c *conn) Exec(ctx context.Context, query string) error {
	d := c.db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	d.statements = append(d.statements, query)

	stmt := strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";")))
	switch {
	case stmt == "BEGIN" || stmt == "BEGIN TRANSACTION":
		if c.inTxn {
			return fmt.Errorf("cannot start a transaction within a transaction")
		}
		c.inTxn = true
		return nil
	case stmt == "COMMIT":
		if !c.inTxn {
			return fmt.Errorf("cannot commit - no transaction is active")
		}
		c.commitLocked()
		return nil
	case stmt == "ROLLBACK":
		if !c.inTxn {
			return fmt.Errorf("cannot rollback - no transaction is active")
		}
		c.pending = make(map[string][][]interface{})
		c.inTxn = false
		return nil
	case strings.HasPrefix(stmt, "SET "):
		return nil
	}

	if m := createRe.FindStringSubmatch(query); m != nil {
		return c.createLocked(m[2], m[3], m[1] != "")
	}
	return fmt.Errorf("Parser Error: unsupported statement %q", query)
}

func (c *conn) commitLocked() {
	for name, rows := range c.pending {
		if t, ok := c.db.file.tables[name]; ok {
			t.rows = append(t.rows, rows...)
		}
	}
	c.pending = make(map[string][][]interface{})
	c.inTxn = false
}

func (c *conn) createLocked(rawName, body string, ifNotExists bool) error {
	name := unquote(rawName)
	if _, exists := c.db.file.tables[key(name)]; exists {
		if ifNotExists {
			return nil
		}
		return fmt.Errorf("Catalog Error: Table with name %s already exists!", name)
	}

	var columns []engine.Column
	for _, def := range splitTopLevel(body) {
		colName, rest := splitIdent(strings.TrimSpace(def))
		typeName := strings.ToUpper(strings.TrimSpace(rest))
		if colName == "" || typeName == "" {
			return fmt.Errorf("Parser Error: bad column definition %q", def)
		}
		columns = append(columns, engine.Column{Name: colName, TypeName: typeName})
	}
	c.db.file.tables[key(name)] = &table{name: name, columns: columns}
	return nil
}

func (c *conn) Query(ctx context.Context, query string) (engine.Rows, error) {
	d := c.db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	d.statements = append(d.statements, query)
	if d.QueryErr != nil {
		return nil, d.QueryErr
	}

	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("Parser Error: unsupported query %q", query)
	}
	t, ok := c.db.file.tables[key(unquote(m[2]))]
	if !ok {
		return nil, fmt.Errorf("Catalog Error: Table with name %s does not exist!", unquote(m[2]))
	}

	var picks []int
	if strings.TrimSpace(m[1]) == "*" {
		for i := range t.columns {
			picks = append(picks, i)
		}
	} else {
		for _, expr := range splitTopLevel(m[1]) {
			name := unquote(strings.TrimSpace(expr))
			idx := -1
			for i, col := range t.columns {
				if strings.EqualFold(col.Name, name) {
					idx = i
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("Binder Error: column %q not found", name)
			}
			picks = append(picks, idx)
		}
	}

	all := append(append([][]interface{}(nil), t.rows...), c.pending[key(t.name)]...)
	result := &rows{pos: -1}
	for _, i := range picks {
		result.columns = append(result.columns, t.columns[i])
	}
	for _, src := range all {
		row := make([]interface{}, len(picks))
		for j, i := range picks {
			row[j] = src[i]
		}
		result.data = append(result.data, row)
	}
	return result, nil
}

func (c *conn) NewAppender(ctx context.Context, tableName string) (engine.Appender, error) {
	d := c.db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	t, ok := c.db.file.tables[key(tableName)]
	if !ok {
		return nil, fmt.Errorf("Catalog Error: Table with name %s does not exist!", tableName)
	}
	return &appender{conn: c, table: t}, nil
}

func (c *conn) Close() error {
	d := c.db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.closed {
		return nil
	}
	// Closing with an open transaction rolls it back.
	c.pending = nil
	c.inTxn = false
	c.closed = true
	d.openConns--
	return nil
}

// write stores flushed rows: inside a transaction they stay pending until
// COMMIT, otherwise they are committed immediately.
func (c *conn) writeLocked(t *table, batch [][]interface{}) {
	if c.inTxn {
		c.pending[key(t.name)] = append(c.pending[key(t.name)], batch...)
		return
	}
	t.rows = append(t.rows, batch...)
}

type rows struct {
	columns []engine.Column
	data    [][]interface{}
	pos     int
}

func (r *rows) Columns() []engine.Column  { return r.columns }
func (r *rows) Value(col int) interface{} { return r.data[r.pos][col] }
func (r *rows) Err() error                { return nil }
func (r *rows) Close() error              { return nil }

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

type appender struct {
	conn   *conn
	table  *table
	row    []interface{}
	buffer [][]interface{}
	closed bool
}

func (a *appender) add(v interface{}) error {
	if a.closed {
		return fmt.Errorf("appender is closed")
	}
	a.row = append(a.row, v)
	return nil
}

func (a *appender) AppendNull() error                        { return a.add(nil) }
func (a *appender) AppendBool(v bool) error                  { return a.add(v) }
func (a *appender) AppendInt8(v int8) error                  { return a.add(v) }
func (a *appender) AppendInt16(v int16) error                { return a.add(v) }
func (a *appender) AppendInt32(v int32) error                { return a.add(v) }
func (a *appender) AppendInt64(v int64) error                { return a.add(v) }
func (a *appender) AppendVarchar(v []byte) error             { return a.add(string(v)) }
func (a *appender) AppendDate(v engine.Date) error           { return a.add(v) }
func (a *appender) AppendTimestamp(v engine.Timestamp) error { return a.add(v) }

func (a *appender) EndRow() error {
	d := a.conn.db.driver
	d.mu.Lock()
	err := d.EndRowErr[key(a.table.name)]
	d.mu.Unlock()

	row := a.row
	a.row = nil
	if err != nil {
		return err
	}
	if len(row) != len(a.table.columns) {
		return fmt.Errorf("Invalid Input Error: call to EndRow before all columns have been appended to (%d of %d)", len(row), len(a.table.columns))
	}
	a.buffer = append(a.buffer, row)
	return nil
}

func (a *appender) DiscardRow() { a.row = nil }

func (a *appender) Flush() error {
	d := a.conn.db.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.FlushErr[key(a.table.name)]; err != nil {
		return err
	}
	if a.conn.closed {
		return fmt.Errorf("connection is closed")
	}
	a.conn.writeLocked(a.table, a.buffer)
	a.buffer = nil
	return nil
}

func (a *appender) Close() error {
	if a.closed {
		return nil
	}
	err := a.Flush()
	a.closed = true
	a.buffer = nil
	return err
}

func key(name string) string {
	return strings.ToLower(name)
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	return ident
}

// splitIdent splits a leading, possibly quoted, identifier from the rest.
func splitIdent(s string) (ident, rest string) {
	if strings.HasPrefix(s, `"`) {
		for i := 1; i < len(s); i++ {
			if s[i] != '"' {
				continue
			}
			if i+1 < len(s) && s[i+1] == '"' {
				i++
				continue
			}
			return unquote(s[:i+1]), s[i+1:]
		}
		return "", ""
	}
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// splitTopLevel splits on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		parts = append(parts, s[start:])
	}
	return parts
}
