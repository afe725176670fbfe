package remote

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultNotifyChannel is the channel the change triggers publish on.
const DefaultNotifyChannel = "table_changes"

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL with triggers publishing on channel.
func Schema(channel string) string {
	if channel == "" || channel == DefaultNotifyChannel {
		return schemaSQL
	}
	return strings.ReplaceAll(schemaSQL, pq.QuoteLiteral(DefaultNotifyChannel), pq.QuoteLiteral(channel))
}

// ApplySchema runs the DDL as one simple-protocol batch.
// It is idempotent.
func ApplySchema(ctx context.Context, db *sql.DB, channel string) error {
	if _, err := db.ExecContext(ctx, Schema(channel)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
