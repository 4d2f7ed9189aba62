package pghost

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/quack/pkg/host"
)

// Catalog reads relation and type metadata from pg_catalog.
type Catalog struct {
	db Querier
}

// NewCatalog creates a catalog reading through db.
func NewCatalog(db Querier) *Catalog {
	return &Catalog{db: db}
}

const relationQuery = `
SELECT c.relname, c.relfilenode, COALESCE(am.amname, '')
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_am am ON am.oid = c.relam
WHERE c.oid = $1`

const attributeQuery = `
SELECT attname, atttypid, atttypmod
FROM pg_catalog.pg_attribute
WHERE attrelid = $1 AND attnum > 0 AND NOT attisdropped
ORDER BY attnum`

// Relation implements host.Catalog.
func (c *Catalog) Relation(ctx context.Context, id host.OID) (*host.Relation, error) {
	rel := &host.Relation{ID: id}
	var node uint32
	err := c.db.QueryRow(ctx, relationQuery, uint32(id)).Scan(&rel.Name, &node, &rel.AccessMethod)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("relation with OID %d does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read relation %d: %w", id, err)
	}
	rel.Node = host.OID(node)

	rows, err := c.db.Query(ctx, attributeQuery, uint32(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes of %s: %w", rel.Name, err)
	}
	defer rows.Close()

	var attrs []host.Attribute
	for rows.Next() {
		var (
			attr    host.Attribute
			typeOID uint32
		)
		if err := rows.Scan(&attr.Name, &typeOID, &attr.TypeMod); err != nil {
			return nil, err
		}
		attr.TypeOID = host.OID(typeOID)
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rel.Desc = host.NewTupleDesc(attrs...)
	return rel, nil
}

// RelationByName resolves a possibly qualified table name.
func (c *Catalog) RelationByName(ctx context.Context, name string) (*host.Relation, error) {
	var id *uint32
	if err := c.db.QueryRow(ctx, "SELECT to_regclass($1)::oid", name).Scan(&id); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return c.Relation(ctx, host.OID(*id))
}

// ResolveType implements host.TypeResolver.
func (c *Catalog) ResolveType(ctx context.Context, name string) (host.OID, error) {
	var id *uint32
	if err := c.db.QueryRow(ctx, "SELECT to_regtype($1)::oid", name).Scan(&id); err != nil {
		return host.InvalidOID, err
	}
	if id == nil {
		return host.InvalidOID, fmt.Errorf("type %q does not exist", name)
	}
	return host.OID(*id), nil
}

// DatabaseID returns the OID of the current database.
func (c *Catalog) DatabaseID(ctx context.Context) (host.OID, error) {
	var id uint32
	err := c.db.QueryRow(ctx, "SELECT oid FROM pg_catalog.pg_database WHERE datname = current_database()").Scan(&id)
	return host.OID(id), err
}
