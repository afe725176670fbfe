// Package assembler joins flat table rows into the hospital tree.
package assembler

import "github.com/Hossein925/f-maharat/internal/domain"

// Tables holds one decoded row set per remote table, in client shape.
// Child collection fields of the rows are ignored; they are rebuilt from
// the foreign keys.
type Tables struct {
	Hospitals              []domain.Hospital
	Departments            []domain.Department
	Staff                  []domain.StaffMember
	Assessments            []domain.Assessment
	WorkLogs               []domain.MonthlyWorkLog
	Patients               []domain.Patient
	ChecklistTemplates     []domain.ChecklistTemplate
	ExamTemplates          []domain.ExamTemplate
	TrainingMaterials      []domain.MonthlyTraining
	AccreditationMaterials []domain.AccreditationMaterial
	NewsBanners            []domain.NewsBanner
	AdminMessages          []domain.AdminMessage
	NeedsAssessments       []domain.MonthlyNeedsAssessment
}

// Assemble builds the tree. Rows keep their source order within each
// collection, rows whose parent is missing are dropped, and every child
// collection is non-nil.
func Assemble(t Tables) []domain.Hospital {
	assessments := groupBy(t.Assessments, func(a domain.Assessment) string { return a.StaffID })
	workLogs := groupBy(t.WorkLogs, func(w domain.MonthlyWorkLog) string { return w.StaffID })

	staffByDept := make(map[string][]domain.StaffMember)
	for _, s := range t.Staff {
		s.Assessments = nonNil(assessments[s.ID])
		s.WorkLogs = nonNil(workLogs[s.ID])
		staffByDept[s.DepartmentID] = append(staffByDept[s.DepartmentID], s)
	}
	patients := groupBy(t.Patients, func(p domain.Patient) string { return p.DepartmentID })

	deptsByHospital := make(map[string][]domain.Department)
	for _, d := range t.Departments {
		d.Staff = nonNil(staffByDept[d.ID])
		d.Patients = nonNil(patients[d.ID])
		deptsByHospital[d.HospitalID] = append(deptsByHospital[d.HospitalID], d)
	}

	checklists := groupBy(t.ChecklistTemplates, func(c domain.ChecklistTemplate) string { return c.HospitalID })
	exams := groupBy(t.ExamTemplates, func(e domain.ExamTemplate) string { return e.HospitalID })
	training := groupBy(t.TrainingMaterials, func(m domain.MonthlyTraining) string { return m.HospitalID })
	accreditation := groupBy(t.AccreditationMaterials, func(m domain.AccreditationMaterial) string { return m.HospitalID })
	banners := groupBy(t.NewsBanners, func(b domain.NewsBanner) string { return b.HospitalID })
	messages := groupBy(t.AdminMessages, func(m domain.AdminMessage) string { return m.HospitalID })
	needs := groupBy(t.NeedsAssessments, func(n domain.MonthlyNeedsAssessment) string { return n.HospitalID })

	hospitals := make([]domain.Hospital, 0, len(t.Hospitals))
	for _, h := range t.Hospitals {
		h.Departments = nonNil(deptsByHospital[h.ID])
		h.ChecklistTemplates = nonNil(checklists[h.ID])
		h.ExamTemplates = nonNil(exams[h.ID])
		h.TrainingMaterials = nonNil(training[h.ID])
		h.AccreditationMaterials = nonNil(accreditation[h.ID])
		h.NewsBanners = nonNil(banners[h.ID])
		h.AdminMessages = nonNil(messages[h.ID])
		h.NeedsAssessments = nonNil(needs[h.ID])
		hospitals = append(hospitals, h)
	}
	return hospitals
}

// Rows returns the number of rows across all tables.
func (t Tables) Rows() int {
	return len(t.Hospitals) + len(t.Departments) + len(t.Staff) + len(t.Assessments) +
		len(t.WorkLogs) + len(t.Patients) + len(t.ChecklistTemplates) + len(t.ExamTemplates) +
		len(t.TrainingMaterials) + len(t.AccreditationMaterials) + len(t.NewsBanners) +
		len(t.AdminMessages) + len(t.NeedsAssessments)
}

func groupBy[T any](rows []T, parent func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, r := range rows {
		key := parent(r)
		out[key] = append(out[key], r)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
