package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/schema"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when an operation names an entity absent from
	// the current snapshot.
	ErrNotFound = errors.New("not found")
	// ErrConfirmationFailed is returned when a destructive operation is
	// confirmed with the wrong credentials.
	ErrConfirmationFailed = errors.New("confirmation failed")
)

// Operations read the current snapshot and write through the mutation
// gateway. The snapshot itself is never patched: each successful write
// schedules a refresh and change notifications do the rest.

// tree returns a private deep copy of the snapshot.
func (s *SyncService) tree() ([]domain.Hospital, error) {
	b, err := json.Marshal(s.Hospitals())
	if err != nil {
		return nil, fmt.Errorf("copy snapshot: %w", err)
	}
	var out []domain.Hospital
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copy snapshot: %w", err)
	}
	return out, nil
}

func (s *SyncService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *SyncService) written(err error) error {
	if err == nil {
		s.RequestRefresh()
	}
	return err
}

func credentialsMatch(want Credentials, nationalID, password string) bool {
	if want.NationalID == "" || want.Password == "" {
		return false
	}
	id := subtle.ConstantTimeCompare([]byte(want.NationalID), []byte(nationalID))
	pw := subtle.ConstantTimeCompare([]byte(want.Password), []byte(password))
	return id&pw == 1
}

// AddHospital creates h with empty collections and returns it with its id.
func (s *SyncService) AddHospital(ctx context.Context, h domain.Hospital) (domain.Hospital, error) {
	h.ID = ""
	if err := s.mutations.UpsertHospital(ctx, &h); err != nil {
		return h, err
	}
	s.logger.Info("Hospital added", zap.String("hospital_id", h.ID))
	return h, s.written(nil)
}

// AddDepartment creates d under the hospital together with its initial
// staff. The writes form one unit of work; on failure the returned error is
// a *mutation.StepError and the rows written so far stay in place.
func (s *SyncService) AddDepartment(ctx context.Context, hospitalID string, d domain.Department) (domain.Department, error) {
	hospitals, err := s.tree()
	if err != nil {
		return d, err
	}
	if domain.FindHospital(hospitals, hospitalID) == nil {
		return d, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}

	u := s.mutations.Begin()
	d.ID = s.mutations.NewID()
	d.HospitalID = hospitalID
	if _, err := u.Upsert(schema.KindDepartment, d, hospitalID); err != nil {
		return d, err
	}
	for i := range d.Staff {
		member := &d.Staff[i]
		member.ID = s.mutations.NewID()
		member.DepartmentID = d.ID
		if _, err := u.Upsert(schema.KindStaff, member, d.ID); err != nil {
			return d, err
		}
	}
	if err := u.Commit(ctx); err != nil {
		return d, err
	}
	s.logger.Info("Department added",
		zap.String("hospital_id", hospitalID),
		zap.String("department_id", d.ID),
		zap.Int("staff_count", len(d.Staff)),
	)
	return d, s.written(nil)
}

// AddStaff creates a staff member in the department.
func (s *SyncService) AddStaff(ctx context.Context, departmentID string, member domain.StaffMember) (domain.StaffMember, error) {
	hospitals, err := s.tree()
	if err != nil {
		return member, err
	}
	if _, d := domain.FindDepartment(hospitals, departmentID); d == nil {
		return member, fmt.Errorf("department %s: %w", departmentID, ErrNotFound)
	}
	member.ID = ""
	member.DepartmentID = departmentID
	return member, s.written(s.mutations.UpsertStaff(ctx, &member, departmentID))
}

func (s *SyncService) findStaff(hospitals []domain.Hospital, staffID string) (*domain.Hospital, *domain.StaffMember, error) {
	h, _, member := domain.FindStaff(hospitals, staffID)
	if member == nil {
		return nil, nil, fmt.Errorf("staff %s: %w", staffID, ErrNotFound)
	}
	return h, member, nil
}

// AddOrUpdateAssessment writes the scores of a staff member for month and
// year. An existing assessment for the same period keeps its id, messages and
// exam submissions. tmpl, when set, records the checklist it was scored on.
func (s *SyncService) AddOrUpdateAssessment(ctx context.Context, staffID, month string, year int, skills []domain.SkillCategory, tmpl *domain.ChecklistTemplate) (domain.Assessment, error) {
	hospitals, err := s.tree()
	if err != nil {
		return domain.Assessment{}, err
	}
	_, member, err := s.findStaff(hospitals, staffID)
	if err != nil {
		return domain.Assessment{}, err
	}

	a := domain.Assessment{
		StaffID:         staffID,
		Month:           month,
		Year:            year,
		SkillCategories: skills,
		ExamSubmissions: []domain.ExamSubmission{},
	}
	if existing := member.FindAssessment(month, year); existing != nil {
		a.ID = existing.ID
		a.SupervisorMessage = existing.SupervisorMessage
		a.ManagerMessage = existing.ManagerMessage
		a.ExamSubmissions = existing.ExamSubmissions
	}
	if tmpl != nil {
		a.TemplateID = tmpl.ID
		a.MinScore = tmpl.MinScore
		a.MaxScore = tmpl.MaxScore
	}
	return a, s.written(s.mutations.UpsertAssessment(ctx, &a, staffID))
}

// UpdateAssessmentMessages sets the supervisor and manager messages of an
// existing assessment.
func (s *SyncService) UpdateAssessmentMessages(ctx context.Context, staffID, month string, year int, supervisorMessage, managerMessage string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	_, member, err := s.findStaff(hospitals, staffID)
	if err != nil {
		return err
	}
	a := member.FindAssessment(month, year)
	if a == nil {
		return fmt.Errorf("assessment %s %d: %w", month, year, ErrNotFound)
	}
	a.SupervisorMessage = supervisorMessage
	a.ManagerMessage = managerMessage
	return s.written(s.mutations.UpsertAssessment(ctx, a, staffID))
}

// SubmitExam records sub on the staff member's assessment for the period,
// creating the assessment when absent. A previous submission of the same
// exam template is replaced.
func (s *SyncService) SubmitExam(ctx context.Context, staffID, month string, year int, sub domain.ExamSubmission) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	_, member, err := s.findStaff(hospitals, staffID)
	if err != nil {
		return err
	}
	a := member.FindAssessment(month, year)
	if a == nil {
		a = &domain.Assessment{
			StaffID:         staffID,
			Month:           month,
			Year:            year,
			SkillCategories: []domain.SkillCategory{},
		}
	}
	if sub.ID == "" {
		sub.ID = s.mutations.NewID()
	}
	if sub.SubmissionDate == "" {
		sub.SubmissionDate = s.timestamp()
	}

	replaced := false
	for i := range a.ExamSubmissions {
		if a.ExamSubmissions[i].ExamTemplateID == sub.ExamTemplateID {
			a.ExamSubmissions[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		a.ExamSubmissions = append(a.ExamSubmissions, sub)
	}
	return s.written(s.mutations.UpsertAssessment(ctx, a, staffID))
}

// AddOrUpdateWorkLog writes the work log for its month and year, reusing the
// id of an existing log for that period.
func (s *SyncService) AddOrUpdateWorkLog(ctx context.Context, staffID string, log domain.MonthlyWorkLog) (domain.MonthlyWorkLog, error) {
	hospitals, err := s.tree()
	if err != nil {
		return log, err
	}
	_, member, err := s.findStaff(hospitals, staffID)
	if err != nil {
		return log, err
	}
	log.ID = ""
	if existing := member.FindWorkLog(log.Month, log.Year); existing != nil {
		log.ID = existing.ID
	}
	log.StaffID = staffID
	return log, s.written(s.mutations.UpsertWorkLog(ctx, &log, staffID))
}

// AddPatient creates a patient in the department.
func (s *SyncService) AddPatient(ctx context.Context, departmentID string, p domain.Patient) (domain.Patient, error) {
	hospitals, err := s.tree()
	if err != nil {
		return p, err
	}
	if _, d := domain.FindDepartment(hospitals, departmentID); d == nil {
		return p, fmt.Errorf("department %s: %w", departmentID, ErrNotFound)
	}
	p.ID = ""
	p.DepartmentID = departmentID
	if p.ChatHistory == nil {
		p.ChatHistory = []domain.ChatMessage{}
	}
	return p, s.written(s.mutations.UpsertPatient(ctx, &p, departmentID))
}

// SendPatientMessage appends msg to the patient's chat history.
func (s *SyncService) SendPatientMessage(ctx context.Context, patientID string, msg domain.ChatMessage) (domain.ChatMessage, error) {
	hospitals, err := s.tree()
	if err != nil {
		return msg, err
	}
	d, p := domain.FindPatient(hospitals, patientID)
	if p == nil {
		return msg, fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = s.mutations.NewID()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = s.timestamp()
	}
	p.ChatHistory = append(p.ChatHistory, msg)
	return msg, s.written(s.mutations.UpsertPatient(ctx, p, d.ID))
}

// SendAdminMessage stores a message between the hospital and the administrator.
func (s *SyncService) SendAdminMessage(ctx context.Context, hospitalID string, msg domain.AdminMessage) (domain.AdminMessage, error) {
	hospitals, err := s.tree()
	if err != nil {
		return msg, err
	}
	if domain.FindHospital(hospitals, hospitalID) == nil {
		return msg, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	msg.ID = ""
	msg.HospitalID = hospitalID
	if msg.Timestamp == "" {
		msg.Timestamp = s.timestamp()
	}
	return msg, s.written(s.mutations.UpsertAdminMessage(ctx, &msg, hospitalID))
}

// UpdateNeedsAssessmentTopics replaces the topics of the hospital's needs
// assessment for month and year, creating it when absent.
func (s *SyncService) UpdateNeedsAssessmentTopics(ctx context.Context, hospitalID, month string, year int, topics []domain.NeedsAssessmentTopic) (domain.MonthlyNeedsAssessment, error) {
	hospitals, err := s.tree()
	if err != nil {
		return domain.MonthlyNeedsAssessment{}, err
	}
	h := domain.FindHospital(hospitals, hospitalID)
	if h == nil {
		return domain.MonthlyNeedsAssessment{}, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	for i := range topics {
		if topics[i].ID == "" {
			topics[i].ID = s.mutations.NewID()
		}
		if topics[i].Responses == nil {
			topics[i].Responses = []domain.NeedsAssessmentAnswer{}
		}
	}
	na := domain.MonthlyNeedsAssessment{HospitalID: hospitalID, Month: month, Year: year}
	if existing := h.FindNeedsAssessment(month, year); existing != nil {
		na.ID = existing.ID
	}
	na.Topics = topics
	return na, s.written(s.mutations.UpsertNeedsAssessment(ctx, &na, hospitalID))
}

// SubmitNeedsAssessmentResponse records a staff member's responses, keyed by
// topic id. Unknown topics are ignored; a previous response by the same staff
// member is replaced.
func (s *SyncService) SubmitNeedsAssessmentResponse(ctx context.Context, staffID, month string, year int, responses map[string]string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	h, member, err := s.findStaff(hospitals, staffID)
	if err != nil {
		return err
	}
	na := h.FindNeedsAssessment(month, year)
	if na == nil {
		return fmt.Errorf("needs assessment %s %d: %w", month, year, ErrNotFound)
	}
	for i := range na.Topics {
		topic := &na.Topics[i]
		response, ok := responses[topic.ID]
		if !ok {
			continue
		}
		answer := domain.NeedsAssessmentAnswer{StaffID: staffID, StaffName: member.Name, Response: response}
		replaced := false
		for j := range topic.Responses {
			if topic.Responses[j].StaffID == staffID {
				topic.Responses[j] = answer
				replaced = true
				break
			}
		}
		if !replaced {
			topic.Responses = append(topic.Responses, answer)
		}
	}
	return s.written(s.mutations.UpsertNeedsAssessment(ctx, na, h.ID))
}

// ArchiveYear stamps year on every assessment, work log and needs assessment
// of the hospital that has none.
func (s *SyncService) ArchiveYear(ctx context.Context, hospitalID string, year int) (int, error) {
	hospitals, err := s.tree()
	if err != nil {
		return 0, err
	}
	h := domain.FindHospital(hospitals, hospitalID)
	if h == nil {
		return 0, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}

	u := s.mutations.Begin()
	record := func(kind schema.Kind, node any, parentID string) error {
		_, err := u.Upsert(kind, node, parentID)
		return err
	}
	for _, d := range h.Departments {
		for _, member := range d.Staff {
			for _, a := range member.Assessments {
				if a.Year == 0 {
					a.Year = year
					if err := record(schema.KindAssessment, a, member.ID); err != nil {
						return 0, err
					}
				}
			}
			for _, w := range member.WorkLogs {
				if w.Year == 0 {
					w.Year = year
					if err := record(schema.KindWorkLog, w, member.ID); err != nil {
						return 0, err
					}
				}
			}
		}
	}
	for _, na := range h.NeedsAssessments {
		if na.Year == 0 {
			na.Year = year
			if err := record(schema.KindNeedsAssessment, na, h.ID); err != nil {
				return 0, err
			}
		}
	}
	if err := u.Commit(ctx); err != nil {
		return 0, err
	}
	s.logger.Info("Year archived",
		zap.String("hospital_id", hospitalID),
		zap.Int("year", year),
		zap.Int("rows", u.Len()),
	)
	return u.Len(), s.written(nil)
}

// ResetHospital deletes every department of the hospital with its staff,
// records and patients. The supervisor's credentials confirm the reset.
func (s *SyncService) ResetHospital(ctx context.Context, hospitalID, nationalID, password string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	h := domain.FindHospital(hospitals, hospitalID)
	if h == nil {
		return fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	want := Credentials{NationalID: h.SupervisorNationalID, Password: h.SupervisorPassword}
	if !credentialsMatch(want, nationalID, password) {
		s.logger.Warn("Hospital reset rejected", zap.String("hospital_id", hospitalID))
		return ErrConfirmationFailed
	}

	u := s.mutations.Begin()
	for _, d := range h.Departments {
		u.Delete(schema.KindDepartment, d.ID)
	}
	if err := u.Commit(ctx); err != nil {
		return err
	}
	s.logger.Info("Hospital reset",
		zap.String("hospital_id", hospitalID),
		zap.Int("departments_removed", len(h.Departments)),
	)
	return s.written(nil)
}
