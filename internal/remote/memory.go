package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Hossein925/f-maharat/internal/schema"
)

// MemoryGateway keeps tables in memory in insertion order. Foreign keys are
// not enforced. Used for tests and local development.
type MemoryGateway struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

type memoryTable struct {
	order []string
	rows  map[string]Record
}

// NewMemoryGateway creates an empty gateway with every schema table present.
func NewMemoryGateway() *MemoryGateway {
	g := &MemoryGateway{tables: make(map[string]*memoryTable, len(schema.Tables))}
	for _, name := range schema.Names() {
		g.tables[name] = &memoryTable{rows: map[string]Record{}}
	}
	return g
}

var _ Gateway = (*MemoryGateway)(nil)

// SelectAll returns copies of all rows of table.
func (g *MemoryGateway) SelectAll(ctx context.Context, table string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, err := g.table(table)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		rec, err := clone(t.rows[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Upsert stores record, merging its columns over an existing row with the same id.
func (g *MemoryGateway) Upsert(ctx context.Context, table string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := RecordID(record)
	if id == "" {
		return fmt.Errorf("upsert %s: %w", table, ErrMissingID)
	}
	rec, err := clone(record)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.table(table)
	if err != nil {
		return err
	}
	existing, ok := t.rows[id]
	if !ok {
		t.order = append(t.order, id)
		t.rows[id] = rec
		return nil
	}
	for k, v := range rec {
		existing[k] = v
	}
	return nil
}

// Delete removes the row with id. Deleting a missing row is not an error.
func (g *MemoryGateway) Delete(ctx context.Context, table string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.table(table)
	if err != nil {
		return err
	}
	if _, ok := t.rows[id]; !ok {
		return nil
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// SelectIDs returns ids of rows whose column equals value.
func (g *MemoryGateway) SelectIDs(ctx context.Context, table, column, value string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, err := g.table(table)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, id := range t.order {
		if v, ok := t.rows[id][column].(string); ok && v == value {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of rows in table.
func (g *MemoryGateway) Len(table string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

func (g *MemoryGateway) table(name string) (*memoryTable, error) {
	t, ok := g.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// clone deep-copies a record through JSON so callers never share nested values.
func clone(rec Record) (Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to copy record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to copy record: %w", err)
	}
	return out, nil
}
