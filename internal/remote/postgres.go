package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Hossein925/f-maharat/internal/schema"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresGateway implements Gateway on PostgreSQL.
// Rows are read as row_to_json so every column arrives with its JSON type,
// nested collections included.
type PostgresGateway struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresGateway creates a gateway over db.
func NewPostgresGateway(db *sql.DB, logger *zap.Logger) *PostgresGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresGateway{db: db, logger: logger}
}

var _ Gateway = (*PostgresGateway)(nil)

// SelectAll returns every row of table.
func (g *PostgresGateway) SelectAll(ctx context.Context, table string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT row_to_json(t)::text FROM %s t", pq.QuoteIdentifier(table))
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", table, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}

	g.logger.Debug("Selected rows", zap.String("table", table), zap.Int("count", len(records)))
	return records, nil
}

// Upsert inserts record, or replaces the columns it carries when the id exists.
// Columns absent from record keep their stored values.
func (g *PostgresGateway) Upsert(ctx context.Context, table string, record Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if RecordID(record) == "" {
		return fmt.Errorf("upsert %s: %w", table, ErrMissingID)
	}

	query, args, err := buildUpsert(table, record)
	if err != nil {
		return err
	}
	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", table, RecordID(record), err)
	}
	return nil
}

// Delete removes the row with id from table.
func (g *PostgresGateway) Delete(ctx context.Context, table string, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(table))
	if _, err := g.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", table, id, err)
	}
	return nil
}

// SelectIDs returns the ids of rows in table where column = value.
// column must be "id" or the table's foreign key.
func (g *PostgresGateway) SelectIDs(ctx context.Context, table, column, value string) ([]string, error) {
	t, ok := schema.ByName(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if column != "id" && column != t.ForeignKey {
		return nil, fmt.Errorf("column %s is not a key of %s", column, table)
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(column))
	rows, err := g.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s ids: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// buildUpsert renders INSERT ... ON CONFLICT (id) DO UPDATE with columns in
// sorted order so the statement text is stable.
func buildUpsert(table string, record Record) (string, []any, error) {
	columns := make([]string, 0, len(record))
	for k := range record {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		q := pq.QuoteIdentifier(col)
		quoted[i] = q
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
		v, err := encodeValue(record[col])
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode %s.%s: %w", table, col, err)
		}
		args[i] = v
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) %s",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		conflict,
	)
	return query, args, nil
}

// encodeValue sends nested collections as JSON text for jsonb columns.
func encodeValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}
