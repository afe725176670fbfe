// Package syncer refreshes the local hospital snapshot from the remote store.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hossein925/f-maharat/internal/assembler"
	"github.com/Hossein925/f-maharat/internal/casing"
	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/localstore"
	"github.com/Hossein925/f-maharat/internal/metrics"
	"github.com/Hossein925/f-maharat/internal/remote"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by Refresh when a refresh started later has
// already committed its snapshot.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// FetchError reports the table whose read failed a refresh.
type FetchError struct {
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Snapshot is the result of Load.
type Snapshot struct {
	Hospitals []domain.Hospital
	// Offline is set when Hospitals came from the local store because the
	// refresh failed. Cause holds that failure.
	Offline bool
	Cause   error
}

// Orchestrator runs refreshes. It is safe for concurrent use.
type Orchestrator struct {
	remote  remote.Gateway
	local   localstore.HospitalStore
	logger  *zap.Logger
	metrics *metrics.Recorder

	started atomic.Uint64

	mu        sync.Mutex
	committed uint64
}

// NewOrchestrator creates an orchestrator. rec may be nil.
func NewOrchestrator(gw remote.Gateway, local localstore.HospitalStore, logger *zap.Logger, rec *metrics.Recorder) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{remote: gw, local: local, logger: logger, metrics: rec}
}

// Refresh reads every table, assembles the tree and writes it through to the
// local store. If any table read fails nothing is written.
//
// Overlapping refreshes commit in start order: a refresh that finishes after
// a later one has committed returns ErrSuperseded without writing.
func (o *Orchestrator) Refresh(ctx context.Context) ([]domain.Hospital, error) {
	gen := o.started.Add(1)
	start := time.Now()

	tables, err := o.fetchAll(ctx)
	if err != nil {
		o.metrics.Refresh("failed", time.Since(start))
		o.logger.Warn("Refresh failed", zap.Uint64("generation", gen), zap.Error(err))
		return nil, err
	}

	hospitals := assembler.Assemble(tables)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen < o.committed {
		o.metrics.Refresh("superseded", time.Since(start))
		o.logger.Debug("Discarding superseded refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("committed", o.committed),
		)
		return nil, ErrSuperseded
	}
	if err := o.local.ReplaceHospitals(ctx, hospitals); err != nil {
		o.logger.Warn("Failed to write snapshot to local store", zap.Error(err))
	}
	o.committed = gen

	o.metrics.Refresh("ok", time.Since(start))
	o.logger.Info("Refresh completed",
		zap.Uint64("generation", gen),
		zap.Int("hospital_count", len(hospitals)),
		zap.Int("row_count", tables.Rows()),
		zap.Duration("took", time.Since(start)),
	)
	return hospitals, nil
}

// Load refreshes and falls back to the last local snapshot when the refresh
// fails. It errors only when both sources fail.
func (o *Orchestrator) Load(ctx context.Context) (Snapshot, error) {
	hospitals, err := o.Refresh(ctx)
	if err == nil {
		return Snapshot{Hospitals: hospitals}, nil
	}

	// The caller's deadline may be what failed the refresh.
	localCtx := context.WithoutCancel(ctx)
	cached, lerr := o.local.LoadHospitals(localCtx)
	if lerr != nil {
		return Snapshot{}, errors.Join(err, fmt.Errorf("load local snapshot: %w", lerr))
	}
	if errors.Is(err, ErrSuperseded) {
		return Snapshot{Hospitals: cached}, nil
	}

	o.logger.Warn("Serving local snapshot", zap.Int("hospital_count", len(cached)), zap.Error(err))
	return Snapshot{Hospitals: cached, Offline: true, Cause: err}, nil
}

func (o *Orchestrator) fetchAll(ctx context.Context) (assembler.Tables, error) {
	var t assembler.Tables
	g, gctx := errgroup.WithContext(ctx)

	fetch := func(table string, dst any) {
		g.Go(func() error {
			return o.fetchTable(gctx, table, dst)
		})
	}
	fetch("hospitals", &t.Hospitals)
	fetch("departments", &t.Departments)
	fetch("staff", &t.Staff)
	fetch("assessments", &t.Assessments)
	fetch("work_logs", &t.WorkLogs)
	fetch("patients", &t.Patients)
	fetch("checklist_templates", &t.ChecklistTemplates)
	fetch("exam_templates", &t.ExamTemplates)
	fetch("training_materials", &t.TrainingMaterials)
	fetch("accreditation_materials", &t.AccreditationMaterials)
	fetch("news_banners", &t.NewsBanners)
	fetch("admin_messages", &t.AdminMessages)
	fetch("needs_assessments", &t.NeedsAssessments)

	if err := g.Wait(); err != nil {
		return assembler.Tables{}, err
	}
	return t, nil
}

func (o *Orchestrator) fetchTable(ctx context.Context, table string, dst any) error {
	records, err := o.remote.SelectAll(ctx, table)
	if err != nil {
		return &FetchError{Table: table, Err: err}
	}
	if err := Decode(records, dst); err != nil {
		return &FetchError{Table: table, Err: err}
	}
	return nil
}

// Decode translates remote records to client casing and decodes them into
// dst, a pointer to a slice of entity structs.
func Decode(records []remote.Record, dst any) error {
	local := make([]any, len(records))
	for i, r := range records {
		local[i] = casing.ToLocalShape(r)
	}
	b, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}
