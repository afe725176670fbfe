// Package mutation writes client-shaped entities to the remote store.
//
// Writes are fire-and-forget from the tree's point of view: the local
// snapshot is never patched here. It converges on the next refresh.
package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Hossein925/f-maharat/internal/casing"
	"github.com/Hossein925/f-maharat/internal/metrics"
	"github.com/Hossein925/f-maharat/internal/remote"
	"github.com/Hossein925/f-maharat/internal/schema"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrParentRequired is returned when a non-root entity is written without a parent id.
var ErrParentRequired = errors.New("parent id is required")

// Publisher announces that a table changed. Used when change notifications
// travel over a broker instead of database triggers.
type Publisher interface {
	Publish(ctx context.Context, table string) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPublisher announces every successful write through p.
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithCascade controls whether Delete removes descendants first.
// The shipped schema also cascades through its foreign keys, so disabling
// it leaves removal to the database.
func WithCascade(enabled bool) Option {
	return func(g *Gateway) { g.cascade = enabled }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) { g.newID = fn }
}

// WithMetrics records writes on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(g *Gateway) { g.metrics = rec }
}

// Gateway is the mutation gateway.
type Gateway struct {
	remote    remote.Gateway
	logger    *zap.Logger
	publisher Publisher
	metrics   *metrics.Recorder
	cascade   bool
	newID     func() string
}

// NewGateway creates a gateway writing to gw. Cascading deletes are on by default.
func NewGateway(gw remote.Gateway, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		remote:  gw,
		logger:  logger,
		cascade: true,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewID returns a fresh client-side id.
func (g *Gateway) NewID() string {
	return g.newID()
}

// write is one prepared remote write.
type write struct {
	table  schema.Table
	record remote.Record
	id     string
}

// prepare flattens node for kind: child collections owned by other tables
// are stripped, an id is assigned when missing, the parent foreign key is set
// from parentID and keys are translated to remote casing.
func (g *Gateway) prepare(kind schema.Kind, node any, parentID string) (write, error) {
	table, err := schema.Lookup(kind)
	if err != nil {
		return write{}, err
	}
	if table.Parent != "" && parentID == "" {
		return write{}, fmt.Errorf("%s: %w", table.Name, ErrParentRequired)
	}

	b, err := json.Marshal(node)
	if err != nil {
		return write{}, fmt.Errorf("encode %s: %w", table.Name, err)
	}
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return write{}, fmt.Errorf("flatten %s: %w", table.Name, err)
	}
	if rec == nil {
		return write{}, fmt.Errorf("flatten %s: not an object", table.Name)
	}

	for _, field := range schema.ChildFields(kind) {
		delete(rec, field)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		id = g.newID()
		rec["id"] = id
	}
	if table.Parent != "" {
		rec[table.ParentField] = parentID
	}

	return write{
		table:  table,
		record: casing.ToRemoteShape(rec).(map[string]any),
		id:     id,
	}, nil
}

func (g *Gateway) apply(ctx context.Context, w write) error {
	err := g.remote.Upsert(ctx, w.table.Name, w.record)
	g.metrics.Mutation(w.table.Name, "upsert", err)
	if err != nil {
		g.logger.Error("Failed to upsert row",
			zap.String("table", w.table.Name),
			zap.String("id", w.id),
			zap.Error(err),
		)
		return fmt.Errorf("upsert %s %s: %w", w.table.Name, w.id, err)
	}
	g.logger.Debug("Upserted row", zap.String("table", w.table.Name), zap.String("id", w.id))
	g.publish(ctx, w.table.Name)
	return nil
}

// Upsert writes node as a row of kind under parentID and returns its id.
// The id is synthesized when node has none.
func (g *Gateway) Upsert(ctx context.Context, kind schema.Kind, node any, parentID string) (string, error) {
	w, err := g.prepare(kind, node, parentID)
	if err != nil {
		g.logger.Error("Rejected write", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	if err := g.apply(ctx, w); err != nil {
		return w.id, err
	}
	return w.id, nil
}

// DeleteRow removes a single row without touching descendants.
func (g *Gateway) DeleteRow(ctx context.Context, kind schema.Kind, id string) error {
	table, err := schema.Lookup(kind)
	if err != nil {
		return err
	}
	return g.deleteRow(ctx, table, id)
}

func (g *Gateway) deleteRow(ctx context.Context, table schema.Table, id string) error {
	err := g.remote.Delete(ctx, table.Name, id)
	g.metrics.Mutation(table.Name, "delete", err)
	if err != nil {
		g.logger.Error("Failed to delete row",
			zap.String("table", table.Name),
			zap.String("id", id),
			zap.Error(err),
		)
		return fmt.Errorf("delete %s %s: %w", table.Name, id, err)
	}
	g.logger.Debug("Deleted row", zap.String("table", table.Name), zap.String("id", id))
	g.publish(ctx, table.Name)
	return nil
}

// Delete removes the row and, when cascading is enabled, every descendant
// first, deepest rows before their parents.
func (g *Gateway) Delete(ctx context.Context, kind schema.Kind, id string) error {
	table, err := schema.Lookup(kind)
	if err != nil {
		return err
	}
	if g.cascade {
		if err := g.deleteChildren(ctx, table, id); err != nil {
			return err
		}
	}
	return g.deleteRow(ctx, table, id)
}

func (g *Gateway) deleteChildren(ctx context.Context, parent schema.Table, parentID string) error {
	for _, child := range schema.Children(parent.Kind) {
		ids, err := g.remote.SelectIDs(ctx, child.Name, child.ForeignKey, parentID)
		if err != nil {
			g.logger.Error("Failed to list children for delete",
				zap.String("table", child.Name),
				zap.String("parent_id", parentID),
				zap.Error(err),
			)
			return fmt.Errorf("list %s of %s: %w", child.Name, parentID, err)
		}
		for _, id := range ids {
			if err := g.deleteChildren(ctx, child, id); err != nil {
				return err
			}
			if err := g.deleteRow(ctx, child, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, table string) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, table); err != nil {
		g.logger.Warn("Failed to publish change", zap.String("table", table), zap.Error(err))
	}
}
