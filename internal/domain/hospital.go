// Package domain holds the hospital tree served to clients.
//
// JSON tags are the client field names. Remote column names are their
// snake_case translation, see package casing. Fields are never omitted, so
// writing a zero value clears the stored column.
package domain

// Hospital is the root of the tree.
type Hospital struct {
	ID                     string                   `json:"id"`
	Name                   string                   `json:"name"`
	Province               string                   `json:"province"`
	City                   string                   `json:"city"`
	SupervisorName         string                   `json:"supervisorName"`
	SupervisorNationalID   string                   `json:"supervisorNationalId"`
	SupervisorPassword     string                   `json:"supervisorPassword"`
	Departments            []Department             `json:"departments"`
	ChecklistTemplates     []ChecklistTemplate      `json:"checklistTemplates"`
	ExamTemplates          []ExamTemplate           `json:"examTemplates"`
	TrainingMaterials      []MonthlyTraining        `json:"trainingMaterials"`
	AccreditationMaterials []AccreditationMaterial  `json:"accreditationMaterials"`
	NewsBanners            []NewsBanner             `json:"newsBanners"`
	AdminMessages          []AdminMessage           `json:"adminMessages"`
	NeedsAssessments       []MonthlyNeedsAssessment `json:"needsAssessments"`
}

// Department belongs to a hospital and owns staff and patients.
type Department struct {
	ID                        string             `json:"id"`
	HospitalID                string             `json:"hospitalId"`
	Name                      string             `json:"name"`
	ManagerName               string             `json:"managerName"`
	ManagerNationalID         string             `json:"managerNationalId"`
	ManagerPassword           string             `json:"managerPassword"`
	StaffCount                int                `json:"staffCount"`
	BedCount                  int                `json:"bedCount"`
	PatientEducationMaterials []TrainingMaterial `json:"patientEducationMaterials"`
	Staff                     []StaffMember      `json:"staff"`
	Patients                  []Patient          `json:"patients"`
}

// StaffMember is a member of a department.
type StaffMember struct {
	ID           string           `json:"id"`
	DepartmentID string           `json:"departmentId"`
	Name         string           `json:"name"`
	Title        string           `json:"title"`
	NationalID   string           `json:"nationalId"`
	Password     string           `json:"password"`
	Assessments  []Assessment     `json:"assessments"`
	WorkLogs     []MonthlyWorkLog `json:"workLogs"`
}

// Patient belongs to a department. Chat history is stored with the row.
type Patient struct {
	ID           string        `json:"id"`
	DepartmentID string        `json:"departmentId"`
	Name         string        `json:"name"`
	NationalID   string        `json:"nationalId"`
	Password     string        `json:"password"`
	ChatHistory  []ChatMessage `json:"chatHistory"`
}
