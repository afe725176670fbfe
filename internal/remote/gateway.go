// Package remote is the gateway to the shared relational store.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hossein925/f-maharat/internal/schema"
)

// Record is one flat row in remote (snake_case) shape.
type Record = map[string]any

var (
	// ErrUnknownTable is returned for a table outside the schema graph.
	ErrUnknownTable = errors.New("unknown table")
	// ErrMissingID is returned when a record to upsert has no id.
	ErrMissingID = errors.New("record has no id")
)

// Gateway reads and writes rows of the remote store.
//
// Upsert inserts or replaces the row with the record's id. Delete removes a
// single row and never cascades. SelectIDs returns the ids of rows whose
// column equals value.
type Gateway interface {
	SelectAll(ctx context.Context, table string) ([]Record, error)
	Upsert(ctx context.Context, table string, record Record) error
	Delete(ctx context.Context, table string, id string) error
	SelectIDs(ctx context.Context, table, column, value string) ([]string, error)
}

func checkTable(table string) error {
	if _, ok := schema.ByName(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

// RecordID returns the record's id, or "" when absent.
func RecordID(record Record) string {
	if id, ok := record["id"].(string); ok {
		return id
	}
	return ""
}
