// Package schema describes the fixed table graph of the remote store.
package schema

import "fmt"

// Kind names an entity type.
type Kind string

const (
	KindHospital              Kind = "hospital"
	KindDepartment            Kind = "department"
	KindStaff                 Kind = "staff"
	KindAssessment            Kind = "assessment"
	KindWorkLog               Kind = "work_log"
	KindPatient               Kind = "patient"
	KindChecklistTemplate     Kind = "checklist_template"
	KindExamTemplate          Kind = "exam_template"
	KindTrainingMaterial      Kind = "training_material"
	KindAccreditationMaterial Kind = "accreditation_material"
	KindNewsBanner            Kind = "news_banner"
	KindAdminMessage          Kind = "admin_message"
	KindNeedsAssessment       Kind = "needs_assessment"
)

// Table is one node of the graph.
type Table struct {
	Kind Kind
	// Name is the remote table name.
	Name string
	// Parent is empty for the root.
	Parent Kind
	// ForeignKey is the remote column referencing the parent id.
	ForeignKey string
	// ParentField is ForeignKey in client casing.
	ParentField string
	// Field is the collection field of the parent holding rows of this table.
	Field string
}

// Tables is ordered parents before children.
var Tables = []Table{
	{Kind: KindHospital, Name: "hospitals"},
	{Kind: KindDepartment, Name: "departments", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "departments"},
	{Kind: KindStaff, Name: "staff", Parent: KindDepartment, ForeignKey: "department_id", ParentField: "departmentId", Field: "staff"},
	{Kind: KindAssessment, Name: "assessments", Parent: KindStaff, ForeignKey: "staff_id", ParentField: "staffId", Field: "assessments"},
	{Kind: KindWorkLog, Name: "work_logs", Parent: KindStaff, ForeignKey: "staff_id", ParentField: "staffId", Field: "workLogs"},
	{Kind: KindPatient, Name: "patients", Parent: KindDepartment, ForeignKey: "department_id", ParentField: "departmentId", Field: "patients"},
	{Kind: KindChecklistTemplate, Name: "checklist_templates", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "checklistTemplates"},
	{Kind: KindExamTemplate, Name: "exam_templates", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "examTemplates"},
	{Kind: KindTrainingMaterial, Name: "training_materials", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "trainingMaterials"},
	{Kind: KindAccreditationMaterial, Name: "accreditation_materials", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "accreditationMaterials"},
	{Kind: KindNewsBanner, Name: "news_banners", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "newsBanners"},
	{Kind: KindAdminMessage, Name: "admin_messages", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "adminMessages"},
	{Kind: KindNeedsAssessment, Name: "needs_assessments", Parent: KindHospital, ForeignKey: "hospital_id", ParentField: "hospitalId", Field: "needsAssessments"},
}

var (
	byKind = make(map[Kind]Table, len(Tables))
	byName = make(map[string]Table, len(Tables))
)

func init() {
	for _, t := range Tables {
		byKind[t.Kind] = t
		byName[t.Name] = t
	}
}

// Lookup returns the table for kind.
func Lookup(kind Kind) (Table, error) {
	t, ok := byKind[kind]
	if !ok {
		return Table{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return t, nil
}

// ByName returns the table with the remote name.
func ByName(name string) (Table, bool) {
	t, ok := byName[name]
	return t, ok
}

// Children returns the tables whose parent is kind, in graph order.
func Children(kind Kind) []Table {
	var out []Table
	for _, t := range Tables {
		if t.Parent == kind {
			out = append(out, t)
		}
	}
	return out
}

// ChildFields returns the collection fields of kind that belong to other tables.
// They are stripped before kind is written.
func ChildFields(kind Kind) []string {
	var out []string
	for _, t := range Children(kind) {
		out = append(out, t.Field)
	}
	return out
}

// Names returns all remote table names in graph order.
func Names() []string {
	out := make([]string, len(Tables))
	for i, t := range Tables {
		out[i] = t.Name
	}
	return out
}
