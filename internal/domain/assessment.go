package domain

// Assessment is a monthly skill evaluation of a staff member.
// (StaffID, Month, Year) identifies it for add-or-update.
type Assessment struct {
	ID                string           `json:"id"`
	StaffID           string           `json:"staffId"`
	Month             string           `json:"month"`
	Year              int              `json:"year"`
	SkillCategories   []SkillCategory  `json:"skillCategories"`
	SupervisorMessage string           `json:"supervisorMessage"`
	ManagerMessage    string           `json:"managerMessage"`
	TemplateID        string           `json:"templateId"`
	MinScore          int              `json:"minScore"`
	MaxScore          int              `json:"maxScore"`
	ExamSubmissions   []ExamSubmission `json:"examSubmissions"`
}

// SkillCategory groups scored items.
type SkillCategory struct {
	Name  string      `json:"name"`
	Items []SkillItem `json:"items"`
}

// SkillItem is one scored skill.
type SkillItem struct {
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// ExamSubmission is a completed exam attached to an assessment.
type ExamSubmission struct {
	ID                        string       `json:"id"`
	ExamTemplateID            string       `json:"examTemplateId"`
	ExamName                  string       `json:"examName"`
	Answers                   []ExamAnswer `json:"answers"`
	Score                     int          `json:"score"`
	TotalCorrectableQuestions int          `json:"totalCorrectableQuestions"`
	SubmissionDate            string       `json:"submissionDate"`
	Questions                 []Question   `json:"questions"`
}

// ExamAnswer is the answer given to one question.
type ExamAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// MonthlyWorkLog records shifts of a staff member for one month.
type MonthlyWorkLog struct {
	ID      string         `json:"id"`
	StaffID string         `json:"staffId"`
	Month   string         `json:"month"`
	Year    int            `json:"year"`
	Entries []WorkLogEntry `json:"entries"`
}

// WorkLogEntry is a single worked shift.
type WorkLogEntry struct {
	Date  string  `json:"date"`
	Shift string  `json:"shift"`
	Hours float64 `json:"hours"`
}
