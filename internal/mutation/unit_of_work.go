package mutation

import (
	"context"
	"fmt"

	"github.com/Hossein925/f-maharat/internal/schema"

	"go.uber.org/zap"
)

// StepError reports the step a commit stopped at.
type StepError struct {
	Index int
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type step struct {
	desc string
	run  func(ctx context.Context) error
}

// UnitOfWork is an ordered list of writes applied together. Every step is
// an upsert or delete by id, so re-running a step is harmless: a failed
// commit is resumed by calling Commit again.
type UnitOfWork struct {
	g       *Gateway
	steps   []step
	applied int
}

// Begin starts an empty unit of work.
func (g *Gateway) Begin() *UnitOfWork {
	return &UnitOfWork{g: g}
}

// Upsert records a write of node and returns its id.
// node is flattened now; later changes to it are not seen.
func (u *UnitOfWork) Upsert(kind schema.Kind, node any, parentID string) (string, error) {
	w, err := u.g.prepare(kind, node, parentID)
	if err != nil {
		return "", err
	}
	u.steps = append(u.steps, step{
		desc: fmt.Sprintf("upsert %s %s", w.table.Name, w.id),
		run:  func(ctx context.Context) error { return u.g.apply(ctx, w) },
	})
	return w.id, nil
}

// Delete records a delete of the row, cascading as the gateway is configured.
func (u *UnitOfWork) Delete(kind schema.Kind, id string) {
	u.steps = append(u.steps, step{
		desc: fmt.Sprintf("delete %s %s", kind, id),
		run:  func(ctx context.Context) error { return u.g.Delete(ctx, kind, id) },
	})
}

// Commit applies the pending steps in order. It stops at the first failure
// and returns a *StepError; the next Commit resumes at that step.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	for u.applied < len(u.steps) {
		s := u.steps[u.applied]
		if err := s.run(ctx); err != nil {
			u.g.logger.Warn("Unit of work stopped",
				zap.Int("step", u.applied),
				zap.Int("steps", len(u.steps)),
				zap.String("desc", s.desc),
				zap.Error(err),
			)
			return &StepError{Index: u.applied, Step: s.desc, Err: err}
		}
		u.applied++
	}
	return nil
}

// Pending returns the number of steps not yet applied.
func (u *UnitOfWork) Pending() int {
	return len(u.steps) - u.applied
}

// Len returns the number of recorded steps.
func (u *UnitOfWork) Len() int {
	return len(u.steps)
}
