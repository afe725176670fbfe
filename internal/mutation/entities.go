package mutation

import (
	"context"

	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/schema"
)

// The typed wrappers assign a missing id into the node before writing, so
// callers can reference the new row straight away.

func (g *Gateway) ensureID(id *string) {
	if *id == "" {
		*id = g.newID()
	}
}

// UpsertHospital writes h without its child collections.
func (g *Gateway) UpsertHospital(ctx context.Context, h *domain.Hospital) error {
	g.ensureID(&h.ID)
	_, err := g.Upsert(ctx, schema.KindHospital, h, "")
	return err
}

// DeleteHospital removes the hospital and its descendants.
func (g *Gateway) DeleteHospital(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindHospital, id)
}

// UpsertDepartment writes d under hospitalID without staff and patients.
func (g *Gateway) UpsertDepartment(ctx context.Context, d *domain.Department, hospitalID string) error {
	g.ensureID(&d.ID)
	_, err := g.Upsert(ctx, schema.KindDepartment, d, hospitalID)
	return err
}

// DeleteDepartment removes the department, its staff and their records, and its patients.
func (g *Gateway) DeleteDepartment(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindDepartment, id)
}

// UpsertStaff writes s under departmentID without assessments and work logs.
func (g *Gateway) UpsertStaff(ctx context.Context, s *domain.StaffMember, departmentID string) error {
	g.ensureID(&s.ID)
	_, err := g.Upsert(ctx, schema.KindStaff, s, departmentID)
	return err
}

// DeleteStaff removes the staff member with assessments and work logs.
func (g *Gateway) DeleteStaff(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindStaff, id)
}

// UpsertAssessment writes a under staffID.
func (g *Gateway) UpsertAssessment(ctx context.Context, a *domain.Assessment, staffID string) error {
	g.ensureID(&a.ID)
	_, err := g.Upsert(ctx, schema.KindAssessment, a, staffID)
	return err
}

// DeleteAssessment removes one assessment.
func (g *Gateway) DeleteAssessment(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindAssessment, id)
}

// UpsertWorkLog writes w under staffID.
func (g *Gateway) UpsertWorkLog(ctx context.Context, w *domain.MonthlyWorkLog, staffID string) error {
	g.ensureID(&w.ID)
	_, err := g.Upsert(ctx, schema.KindWorkLog, w, staffID)
	return err
}

// DeleteWorkLog removes one work log.
func (g *Gateway) DeleteWorkLog(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindWorkLog, id)
}

// UpsertPatient writes p under departmentID.
func (g *Gateway) UpsertPatient(ctx context.Context, p *domain.Patient, departmentID string) error {
	g.ensureID(&p.ID)
	_, err := g.Upsert(ctx, schema.KindPatient, p, departmentID)
	return err
}

// DeletePatient removes one patient.
func (g *Gateway) DeletePatient(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindPatient, id)
}

// UpsertChecklistTemplate writes c under hospitalID.
func (g *Gateway) UpsertChecklistTemplate(ctx context.Context, c *domain.ChecklistTemplate, hospitalID string) error {
	g.ensureID(&c.ID)
	_, err := g.Upsert(ctx, schema.KindChecklistTemplate, c, hospitalID)
	return err
}

// DeleteChecklistTemplate removes one checklist template.
func (g *Gateway) DeleteChecklistTemplate(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindChecklistTemplate, id)
}

// UpsertExamTemplate writes e under hospitalID.
func (g *Gateway) UpsertExamTemplate(ctx context.Context, e *domain.ExamTemplate, hospitalID string) error {
	g.ensureID(&e.ID)
	_, err := g.Upsert(ctx, schema.KindExamTemplate, e, hospitalID)
	return err
}

// DeleteExamTemplate removes one exam template.
func (g *Gateway) DeleteExamTemplate(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindExamTemplate, id)
}

// UpsertMonthlyTraining writes m under hospitalID.
func (g *Gateway) UpsertMonthlyTraining(ctx context.Context, m *domain.MonthlyTraining, hospitalID string) error {
	g.ensureID(&m.ID)
	_, err := g.Upsert(ctx, schema.KindTrainingMaterial, m, hospitalID)
	return err
}

// DeleteMonthlyTraining removes one month of training materials.
func (g *Gateway) DeleteMonthlyTraining(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindTrainingMaterial, id)
}

// UpsertAccreditationMaterial writes m under hospitalID.
func (g *Gateway) UpsertAccreditationMaterial(ctx context.Context, m *domain.AccreditationMaterial, hospitalID string) error {
	g.ensureID(&m.ID)
	_, err := g.Upsert(ctx, schema.KindAccreditationMaterial, m, hospitalID)
	return err
}

// DeleteAccreditationMaterial removes one accreditation material.
func (g *Gateway) DeleteAccreditationMaterial(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindAccreditationMaterial, id)
}

// UpsertNewsBanner writes b under hospitalID.
func (g *Gateway) UpsertNewsBanner(ctx context.Context, b *domain.NewsBanner, hospitalID string) error {
	g.ensureID(&b.ID)
	_, err := g.Upsert(ctx, schema.KindNewsBanner, b, hospitalID)
	return err
}

// DeleteNewsBanner removes one banner row. The image blob is not touched.
func (g *Gateway) DeleteNewsBanner(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindNewsBanner, id)
}

// UpsertAdminMessage writes m under hospitalID.
func (g *Gateway) UpsertAdminMessage(ctx context.Context, m *domain.AdminMessage, hospitalID string) error {
	g.ensureID(&m.ID)
	_, err := g.Upsert(ctx, schema.KindAdminMessage, m, hospitalID)
	return err
}

// DeleteAdminMessage removes one admin message.
func (g *Gateway) DeleteAdminMessage(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindAdminMessage, id)
}

// UpsertNeedsAssessment writes n under hospitalID.
func (g *Gateway) UpsertNeedsAssessment(ctx context.Context, n *domain.MonthlyNeedsAssessment, hospitalID string) error {
	g.ensureID(&n.ID)
	_, err := g.Upsert(ctx, schema.KindNeedsAssessment, n, hospitalID)
	return err
}

// DeleteNeedsAssessment removes one needs assessment.
func (g *Gateway) DeleteNeedsAssessment(ctx context.Context, id string) error {
	return g.Delete(ctx, schema.KindNeedsAssessment, id)
}
