// Package memhost is an in-process host database. It keeps a catalog and a
// heap store in memory, runs transactions and savepoints, and drives the
// host hook chains the way a real server does, so extensions can be
// exercised end to end without PostgreSQL. Catalog changes and heap rows
// are not transactional.
package memhost

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/quack/pkg/host"
)

// HeapAccessMethod is the built-in access method name.
const HeapAccessMethod = "heap"

// firstUserOID is where relation OIDs start.
const firstUserOID host.OID = 16384

var builtinTypes = map[string]host.OID{
	"bool":              host.BoolOID,
	"boolean":           host.BoolOID,
	`"char"`:            host.CharOID,
	"int2":              host.Int2OID,
	"smallint":          host.Int2OID,
	"int":               host.Int4OID,
	"int4":              host.Int4OID,
	"integer":           host.Int4OID,
	"int8":              host.Int8OID,
	"bigint":            host.Int8OID,
	"text":              host.TextOID,
	"varchar":           host.VarcharOID,
	"character varying": host.VarcharOID,
	"bpchar":            host.BPCharOID,
	"char":              host.BPCharOID,
	"character":         host.BPCharOID,
	"date":              host.DateOID,
	"timestamp":         host.TimestampOID,
	"real":              host.Float4OID,
	"float4":            host.Float4OID,
	"float8":            host.Float8OID,
	"double precision":  host.Float8OID,
	"numeric":           host.NumericOID,
	"json":              host.OID(114),
	"uuid":              host.OID(2950),
}

// Host is one database shared by every backend connected to it.
type Host struct {
	databaseID host.OID
	locks      *host.LockManager

	mu        sync.RWMutex
	relations map[host.OID]*host.Relation
	byName    map[string]host.OID
	heap      map[host.OID][][]interface{}
	nextOID   host.OID
}

// New creates an empty database with the given OID.
func New(databaseID host.OID) *Host {
	return &Host{
		databaseID: databaseID,
		locks:      host.NewLockManager(),
		relations:  make(map[host.OID]*host.Relation),
		byName:     make(map[string]host.OID),
		heap:       make(map[host.OID][][]interface{}),
		nextOID:    firstUserOID + 1,
	}
}

// DatabaseID returns the database OID.
func (h *Host) DatabaseID() host.OID { return h.databaseID }

// Relation implements host.Catalog.
func (h *Host) Relation(ctx context.Context, id host.OID) (*host.Relation, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rel, ok := h.relations[id]
	if !ok {
		return nil, fmt.Errorf("relation with OID %d does not exist", id)
	}
	return rel, nil
}

// RelationByName looks a relation up by its unqualified name.
func (h *Host) RelationByName(name string) (*host.Relation, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	id, ok := h.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return h.relations[id], nil
}

// ResolveType implements host.TypeResolver.
func (h *Host) ResolveType(ctx context.Context, name string) (host.OID, error) {
	oid, ok := builtinTypes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return host.InvalidOID, fmt.Errorf("type %q does not exist", name)
	}
	return oid, nil
}

// HeapRows returns the rows stored in a heap relation.
func (h *Host) HeapRows(name string) ([][]interface{}, error) {
	rel, err := h.RelationByName(name)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([][]interface{}(nil), h.heap[rel.ID]...), nil
}

// Relations returns every relation name, sorted.
func (h *Host) Relations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Host) createRelation(ctx context.Context, stmt *host.CreateStmt) error {
	attrs := make([]host.Attribute, len(stmt.Columns))
	for i, col := range stmt.Columns {
		oid, err := h.ResolveType(ctx, col.TypeName)
		if err != nil {
			return err
		}
		attrs[i] = host.Attribute{Name: col.Name, TypeOID: oid, TypeMod: -1}
	}
	am := stmt.AccessMethod
	if am == "" {
		am = HeapAccessMethod
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := strings.ToLower(stmt.Name)
	if _, exists := h.byName[key]; exists {
		if stmt.IfNotExists {
			return nil
		}
		return fmt.Errorf("relation %q already exists", stmt.Name)
	}
	id := h.nextOID
	h.nextOID++
	h.relations[id] = &host.Relation{
		ID:           id,
		Node:         id,
		Name:         stmt.Name,
		AccessMethod: am,
		Desc:         host.NewTupleDesc(attrs...),
	}
	h.byName[key] = id
	return nil
}

func (h *Host) heapInsert(rel *host.Relation, slot *host.TupleSlot) error {
	values, err := slot.GoValues()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heap[rel.ID] = append(h.heap[rel.ID], values)
	return nil
}
