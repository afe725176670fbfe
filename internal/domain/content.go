package domain

// ChecklistTemplate is a reusable set of skill categories.
type ChecklistTemplate struct {
	ID         string          `json:"id"`
	HospitalID string          `json:"hospitalId"`
	Name       string          `json:"name"`
	MinScore   int             `json:"minScore"`
	MaxScore   int             `json:"maxScore"`
	Categories []SkillCategory `json:"categories"`
}

// ExamTemplate is a reusable exam.
type ExamTemplate struct {
	ID         string     `json:"id"`
	HospitalID string     `json:"hospitalId"`
	Name       string     `json:"name"`
	Questions  []Question `json:"questions"`
}

// Question is an exam question. Options is empty for descriptive questions.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// TrainingMaterial points at an uploaded file by its blob path.
type TrainingMaterial struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// MonthlyTraining groups training materials published for a month.
type MonthlyTraining struct {
	ID         string             `json:"id"`
	HospitalID string             `json:"hospitalId"`
	Month      string             `json:"month"`
	Year       int                `json:"year"`
	Materials  []TrainingMaterial `json:"materials"`
}

// AccreditationMaterial is a hospital-wide accreditation document.
type AccreditationMaterial struct {
	ID          string `json:"id"`
	HospitalID  string `json:"hospitalId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// NewsBanner is shown on the hospital dashboard. ImageID is the blob path.
type NewsBanner struct {
	ID          string `json:"id"`
	HospitalID  string `json:"hospitalId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageID     string `json:"imageId"`
}

// MessageFile is a file attached to a message.
type MessageFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ChatMessage is one entry of a patient conversation.
type ChatMessage struct {
	ID        string       `json:"id"`
	Sender    string       `json:"sender"`
	Timestamp string       `json:"timestamp"`
	Text      string       `json:"text"`
	File      *MessageFile `json:"file"`
}

// AdminMessage is a message between the hospital supervisor and the administrator.
type AdminMessage struct {
	ID         string       `json:"id"`
	HospitalID string       `json:"hospitalId"`
	Sender     string       `json:"sender"`
	Timestamp  string       `json:"timestamp"`
	Text       string       `json:"text"`
	File       *MessageFile `json:"file"`
}

// MonthlyNeedsAssessment collects training-need topics and staff responses
// for one month. (HospitalID, Month, Year) identifies it.
type MonthlyNeedsAssessment struct {
	ID         string                 `json:"id"`
	HospitalID string                 `json:"hospitalId"`
	Month      string                 `json:"month"`
	Year       int                    `json:"year"`
	Topics     []NeedsAssessmentTopic `json:"topics"`
}

// NeedsAssessmentTopic is one topic staff respond to.
type NeedsAssessmentTopic struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Responses   []NeedsAssessmentAnswer `json:"responses"`
}

// NeedsAssessmentAnswer is a staff member's response to a topic.
type NeedsAssessmentAnswer struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Response  string `json:"response"`
}
