package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hossein925/f-maharat/internal/attachment"
	"github.com/Hossein925/f-maharat/internal/blob"
	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/listener"
	"github.com/Hossein925/f-maharat/internal/localstore"
	"github.com/Hossein925/f-maharat/internal/mutation"
	"github.com/Hossein925/f-maharat/internal/remote"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var admin = Credentials{NationalID: "0000000001", Password: "root-pass"}

type harness struct {
	svc    *SyncService
	remote *remote.MemoryGateway
	local  *localstore.SQLiteStore
	blobs  *blob.MemoryStore
}

// toggleGateway fails every read while down is set.
type toggleGateway struct {
	*remote.MemoryGateway
	down atomic.Bool
}

func (g *toggleGateway) SelectAll(ctx context.Context, table string) ([]remote.Record, error) {
	if g.down.Load() {
		return nil, errors.New("network unreachable")
	}
	return g.MemoryGateway.SelectAll(ctx, table)
}

func newHarness(t *testing.T, gw remote.Gateway, ln listener.Listener) *harness {
	t.Helper()
	mem, _ := gw.(*remote.MemoryGateway)
	local, err := localstore.NewSQLiteStore(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	blobs := blob.NewMemory("https://cdn.example")

	svc := New(Deps{
		Remote:         gw,
		Local:          local,
		Attachments:    attachment.NewCache(blobs, local, nil, zap.NewNop()),
		Listener:       ln,
		Logger:         zap.NewNop(),
		RefreshTimeout: time.Second,
		Admin:          admin,
		Now:            func() time.Time { return time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC) },
	})
	return &harness{svc: svc, remote: mem, local: local, blobs: blobs}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.svc.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = h.svc.Stop(stopCtx)
	})
	select {
	case <-h.svc.Ready():
	case err := <-errCh:
		t.Fatalf("service stopped before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("service not ready")
	}
}

func startService(t *testing.T) *harness {
	h := newHarness(t, remote.NewMemoryGateway(), nil)
	h.start(t)
	return h
}

func (h *harness) waitFor(t *testing.T, cond func([]domain.Hospital) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.svc.Hospitals()) }, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) addHospital(t *testing.T) domain.Hospital {
	t.Helper()
	hosp, err := h.svc.AddHospital(context.Background(), domain.Hospital{
		Name:                 "Sina",
		SupervisorNationalID: "1111111111",
		SupervisorPassword:   "sup-pass",
	})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool { return domain.FindHospital(hs, hosp.ID) != nil })
	return hosp
}

func (h *harness) addDepartment(t *testing.T, hospitalID string, staff ...domain.StaffMember) domain.Department {
	t.Helper()
	d, err := h.svc.AddDepartment(context.Background(), hospitalID, domain.Department{Name: "ICU", Staff: staff})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindDepartment(hs, d.ID)
		return got != nil && len(got.Staff) == len(staff)
	})
	return d
}

func TestScenario_AssessmentLifecycle(t *testing.T) {
	h := startService(t)
	ctx := context.Background()

	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara", Title: "Nurse"})
	staffID := d.Staff[0].ID

	skills := []domain.SkillCategory{{Name: "Triage", Items: []domain.SkillItem{{Description: "Vitals", Score: 3}}}}
	a, err := h.svc.AddOrUpdateAssessment(ctx, staffID, "فروردین", 1403, skills, &domain.ChecklistTemplate{ID: "T1", MinScore: 0, MaxScore: 4})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		return s != nil && s.FindAssessment("فروردین", 1403) != nil
	})

	require.NoError(t, h.svc.UpdateAssessmentMessages(ctx, staffID, "فروردین", 1403, "well done", "keep going"))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		return s.FindAssessment("فروردین", 1403).SupervisorMessage == "well done"
	})

	skills[0].Items[0].Score = 4
	again, err := h.svc.AddOrUpdateAssessment(ctx, staffID, "فروردین", 1403, skills, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, "well done", again.SupervisorMessage)
	assert.Equal(t, "keep going", again.ManagerMessage)

	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		got := s.FindAssessment("فروردین", 1403)
		return len(s.Assessments) == 1 && got.SkillCategories[0].Items[0].Score == 4
	})
	assert.Equal(t, 1, h.remote.Len("assessments"))
}

func TestUpdateAssessmentMessages_NotFound(t *testing.T) {
	h := startService(t)
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})

	err := h.svc.UpdateAssessmentMessages(context.Background(), d.Staff[0].ID, "مهر", 1403, "x", "y")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.svc.AddStaff(context.Background(), "missing", domain.StaffMember{Name: "Reza"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitExam_CreatesAssessmentAndReplacesSameTemplate(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})
	staffID := d.Staff[0].ID

	require.NoError(t, h.svc.SubmitExam(ctx, staffID, "مهر", 1403, domain.ExamSubmission{ExamTemplateID: "E1", Score: 5}))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		a := s.FindAssessment("مهر", 1403)
		return a != nil && len(a.ExamSubmissions) == 1
	})

	require.NoError(t, h.svc.SubmitExam(ctx, staffID, "مهر", 1403, domain.ExamSubmission{ExamTemplateID: "E1", Score: 9}))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		a := s.FindAssessment("مهر", 1403)
		return len(a.ExamSubmissions) == 1 && a.ExamSubmissions[0].Score == 9
	})
	_, _, s := domain.FindStaff(h.svc.Hospitals(), staffID)
	assert.Equal(t, "2024-03-20T08:00:00Z", s.Assessments[0].ExamSubmissions[0].SubmissionDate)
}

func TestAddOrUpdateWorkLog_ReusesPeriodID(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})
	staffID := d.Staff[0].ID

	first, err := h.svc.AddOrUpdateWorkLog(ctx, staffID, domain.MonthlyWorkLog{Month: "آبان", Year: 1403,
		Entries: []domain.WorkLogEntry{{Date: "1403-08-01", Shift: "morning", Hours: 6}}})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		return s.FindWorkLog("آبان", 1403) != nil
	})

	second, err := h.svc.AddOrUpdateWorkLog(ctx, staffID, domain.MonthlyWorkLog{Month: "آبان", Year: 1403})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.remote.Len("work_logs"))
}

func TestPatientAndAdminMessages(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID)

	p, err := h.svc.AddPatient(ctx, d.ID, domain.Patient{Name: "Ali", NationalID: "2222222222"})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool { _, got := domain.FindPatient(hs, p.ID); return got != nil })

	msg, err := h.svc.SendPatientMessage(ctx, p.ID, domain.ChatMessage{Sender: "patient", Text: "سلام"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindPatient(hs, p.ID)
		return len(got.ChatHistory) == 1 && got.ChatHistory[0].Text == "سلام"
	})

	_, err = h.svc.SendAdminMessage(ctx, hosp.ID, domain.AdminMessage{Sender: "supervisor", Text: "report attached",
		File: &domain.MessageFile{ID: "F1", Name: "report.pdf", Type: "application/pdf"}})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		got := domain.FindHospital(hs, hosp.ID)
		return len(got.AdminMessages) == 1 && got.AdminMessages[0].File != nil && got.AdminMessages[0].File.Name == "report.pdf"
	})

	_, err = h.svc.SendPatientMessage(ctx, "missing", domain.ChatMessage{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNeedsAssessment_TopicsAndResponses(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})
	staffID := d.Staff[0].ID

	na, err := h.svc.UpdateNeedsAssessmentTopics(ctx, hosp.ID, "دی", 1403, []domain.NeedsAssessmentTopic{{Title: "CPR"}, {Title: "Hygiene"}})
	require.NoError(t, err)
	require.Len(t, na.Topics, 2)
	topicID := na.Topics[0].ID
	h.waitFor(t, func(hs []domain.Hospital) bool {
		return domain.FindHospital(hs, hosp.ID).FindNeedsAssessment("دی", 1403) != nil
	})

	err = h.svc.SubmitNeedsAssessmentResponse(ctx, staffID, "دی", 1403, map[string]string{topicID: "need refresher", "unknown": "x"})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		got := domain.FindHospital(hs, hosp.ID).FindNeedsAssessment("دی", 1403)
		return len(got.Topics[0].Responses) == 1
	})
	got := domain.FindHospital(h.svc.Hospitals(), hosp.ID).FindNeedsAssessment("دی", 1403)
	assert.Equal(t, "Sara", got.Topics[0].Responses[0].StaffName)
	assert.Empty(t, got.Topics[1].Responses)

	again, err := h.svc.UpdateNeedsAssessmentTopics(ctx, hosp.ID, "دی", 1403, got.Topics[:1])
	require.NoError(t, err)
	assert.Equal(t, na.ID, again.ID)

	err = h.svc.SubmitNeedsAssessmentResponse(ctx, staffID, "بهمن", 1403, map[string]string{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewsBanner_AddAndDelete(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)

	b, err := h.svc.AddNewsBanner(ctx, hosp.ID, "Welcome", "New wing", Upload{Name: "wing.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})
	require.NoError(t, err)
	assert.Contains(t, b.ImageID, "-"+b.ID+".jpg")
	_, err = h.blobs.Head(ctx, b.ImageID)
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool { _, got := domain.FindNewsBanner(hs, b.ID); return got != nil })

	require.NoError(t, h.svc.UpdateNewsBanner(ctx, b.ID, "Welcome back", "Wing open"))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindNewsBanner(hs, b.ID)
		return got != nil && got.Title == "Welcome back" && got.Description == "Wing open" && got.ImageID == b.ImageID
	})
	assert.ErrorIs(t, h.svc.UpdateNewsBanner(ctx, "missing", "", ""), ErrNotFound)

	require.NoError(t, h.svc.DeleteNewsBanner(ctx, b.ID))
	_, err = h.blobs.Head(ctx, b.ImageID)
	assert.ErrorIs(t, err, blob.ErrNotFound)
	_, err = h.local.GetFile(ctx, h.blobs.URL(b.ImageID))
	assert.ErrorIs(t, err, localstore.ErrMiss)
	h.waitFor(t, func(hs []domain.Hospital) bool { _, got := domain.FindNewsBanner(hs, b.ID); return got == nil })
}

// assertRemoved checks that path is gone from the blob store and the local cache.
func (h *harness) assertRemoved(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.blobs.Head(ctx, path)
	assert.ErrorIs(t, err, blob.ErrNotFound)
	_, err = h.local.GetFile(ctx, h.blobs.URL(path))
	assert.ErrorIs(t, err, localstore.ErrMiss)
}

func TestTrainingMaterial_AddUpdateDelete(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	pdf := Upload{Name: "hygiene.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}

	first, err := h.svc.AddTrainingMaterial(ctx, hosp.ID, "آبان", 1403, "Hand hygiene", pdf)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", first.Type)
	_, err = h.blobs.Head(ctx, first.Path)
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		tr := domain.FindHospital(hs, hosp.ID).FindTraining("آبان", 1403)
		return tr != nil && len(tr.Materials) == 1
	})

	second, err := h.svc.AddTrainingMaterial(ctx, hosp.ID, "آبان", 1403, "", Upload{Name: "cpr.mp4", ContentType: "video/mp4", Data: []byte("mp4")})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		tr := domain.FindHospital(hs, hosp.ID).FindTraining("آبان", 1403)
		return tr != nil && len(tr.Materials) == 2
	})
	assert.Equal(t, 1, h.remote.Len("training_materials"))

	require.NoError(t, h.svc.UpdateTrainingMaterialDescription(ctx, hosp.ID, "آبان", 1403, second.ID, "CPR refresher"))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		tr := domain.FindHospital(hs, hosp.ID).FindTraining("آبان", 1403)
		i := domain.FindMaterial(tr.Materials, second.ID)
		return i >= 0 && tr.Materials[i].Description == "CPR refresher"
	})

	require.NoError(t, h.svc.DeleteTrainingMaterial(ctx, hosp.ID, "آبان", 1403, first.ID))
	h.assertRemoved(t, first.Path)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		tr := domain.FindHospital(hs, hosp.ID).FindTraining("آبان", 1403)
		return tr != nil && len(tr.Materials) == 1 && tr.Materials[0].ID == second.ID
	})

	assert.ErrorIs(t, h.svc.DeleteTrainingMaterial(ctx, hosp.ID, "آبان", 1403, first.ID), ErrNotFound)
	assert.ErrorIs(t, h.svc.DeleteTrainingMaterial(ctx, hosp.ID, "آذر", 1403, second.ID), ErrNotFound)
	_, err = h.svc.AddTrainingMaterial(ctx, "missing", "آبان", 1403, "", pdf)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccreditationMaterial_AddUpdateDelete(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)

	m, err := h.svc.AddAccreditationMaterial(ctx, hosp.ID, "Fire plan", Upload{Name: "fire.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, hosp.ID, m.HospitalID)
	_, err = h.blobs.Head(ctx, m.Path)
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool { _, got := domain.FindAccreditationMaterial(hs, m.ID); return got != nil })

	require.NoError(t, h.svc.UpdateAccreditationMaterialDescription(ctx, m.ID, "Fire plan 1403"))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindAccreditationMaterial(hs, m.ID)
		return got != nil && got.Description == "Fire plan 1403"
	})

	require.NoError(t, h.svc.DeleteAccreditationMaterial(ctx, m.ID))
	h.assertRemoved(t, m.Path)
	assert.Equal(t, 0, h.remote.Len("accreditation_materials"))
	h.waitFor(t, func(hs []domain.Hospital) bool { _, got := domain.FindAccreditationMaterial(hs, m.ID); return got == nil })
	assert.ErrorIs(t, h.svc.DeleteAccreditationMaterial(ctx, m.ID), ErrNotFound)
}

func TestPatientEducationMaterial_AddUpdateDelete(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})

	m, err := h.svc.AddPatientEducationMaterial(ctx, d.ID, "Diabetes diet", Upload{Name: "diet.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	_, err = h.blobs.Head(ctx, m.Path)
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindDepartment(hs, d.ID)
		return got != nil && len(got.PatientEducationMaterials) == 1 && len(got.Staff) == 1
	})

	require.NoError(t, h.svc.UpdatePatientEducationMaterialDescription(ctx, d.ID, m.ID, "Low sugar diet"))
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindDepartment(hs, d.ID)
		return len(got.PatientEducationMaterials) == 1 && got.PatientEducationMaterials[0].Description == "Low sugar diet"
	})

	require.NoError(t, h.svc.DeletePatientEducationMaterial(ctx, d.ID, m.ID))
	h.assertRemoved(t, m.Path)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, got := domain.FindDepartment(hs, d.ID)
		return got != nil && len(got.PatientEducationMaterials) == 0 && len(got.Staff) == 1
	})
	assert.ErrorIs(t, h.svc.DeletePatientEducationMaterial(ctx, d.ID, m.ID), ErrNotFound)
}

// rejectingGateway fails every upsert into table.
type rejectingGateway struct {
	*remote.MemoryGateway
	table string
}

func (g *rejectingGateway) Upsert(ctx context.Context, table string, record remote.Record) error {
	if table == g.table {
		return errors.New("permission denied")
	}
	return g.MemoryGateway.Upsert(ctx, table, record)
}

func TestAddMaterial_RemovesUploadWhenRowWriteFails(t *testing.T) {
	h := newHarness(t, &rejectingGateway{MemoryGateway: remote.NewMemoryGateway(), table: "accreditation_materials"}, nil)
	h.start(t)
	ctx := context.Background()
	hosp := h.addHospital(t)

	m, err := h.svc.AddAccreditationMaterial(ctx, hosp.ID, "", Upload{Name: "fire.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	require.Error(t, err)
	require.NotEmpty(t, m.Path)
	h.assertRemoved(t, m.Path)
}

func TestArchiveYear_StampsUndatedRecords(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})
	staffID := d.Staff[0].ID

	m := mutation.NewGateway(h.remote, zap.NewNop())
	require.NoError(t, m.UpsertAssessment(ctx, &domain.Assessment{ID: "A0", Month: "مهر"}, staffID))
	require.NoError(t, m.UpsertAssessment(ctx, &domain.Assessment{ID: "A1", Month: "آبان", Year: 1402}, staffID))
	require.NoError(t, m.UpsertWorkLog(ctx, &domain.MonthlyWorkLog{ID: "W0", Month: "مهر"}, staffID))
	require.NoError(t, m.UpsertNeedsAssessment(ctx, &domain.MonthlyNeedsAssessment{ID: "N0", Month: "مهر"}, hosp.ID))
	h.svc.RequestRefresh()
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		return len(s.Assessments) == 2
	})

	n, err := h.svc.ArchiveYear(ctx, hosp.ID, 1403)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		_, _, s := domain.FindStaff(hs, staffID)
		return s.FindAssessment("مهر", 1403) != nil && s.FindWorkLog("مهر", 1403) != nil
	})
	_, _, s := domain.FindStaff(h.svc.Hospitals(), staffID)
	assert.NotNil(t, s.FindAssessment("آبان", 1402))
	assert.NotNil(t, domain.FindHospital(h.svc.Hospitals(), hosp.ID).FindNeedsAssessment("مهر", 1403))
}

func TestResetHospital_RequiresSupervisorCredentials(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})

	err := h.svc.ResetHospital(ctx, hosp.ID, "1111111111", "wrong")
	assert.ErrorIs(t, err, ErrConfirmationFailed)
	assert.Equal(t, 1, h.remote.Len("departments"))

	require.NoError(t, h.svc.ResetHospital(ctx, hosp.ID, "1111111111", "sup-pass"))
	assert.Equal(t, 0, h.remote.Len("departments"))
	assert.Equal(t, 0, h.remote.Len("staff"))
	h.waitFor(t, func(hs []domain.Hospital) bool { return len(domain.FindHospital(hs, hosp.ID).Departments) == 0 })
}

func TestBackup_ExportAndRestore(t *testing.T) {
	h := startService(t)
	ctx := context.Background()
	hosp := h.addHospital(t)
	d := h.addDepartment(t, hosp.ID, domain.StaffMember{Name: "Sara"})
	_, err := h.svc.AddOrUpdateAssessment(ctx, d.Staff[0].ID, "فروردین", 1403, []domain.SkillCategory{}, nil)
	require.NoError(t, err)
	_, err = h.svc.AddNewsBanner(ctx, hosp.ID, "Hi", "", Upload{Name: "a.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool {
		got := domain.FindHospital(hs, hosp.ID)
		return len(got.NewsBanners) == 1 && len(got.Departments[0].Staff[0].Assessments) == 1
	})

	data, err := h.svc.ExportBackup(ctx)
	require.NoError(t, err)
	var decoded Backup
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "full_backup", decoded.Type)
	assert.Len(t, decoded.Files, 1)

	// Diverge from the backup, then restore it.
	_, err = h.svc.AddHospital(ctx, domain.Hospital{Name: "Razi"})
	require.NoError(t, err)
	h.waitFor(t, func(hs []domain.Hospital) bool { return len(hs) == 2 })
	require.NoError(t, h.local.ClearFiles(ctx))

	assert.ErrorIs(t, h.svc.RestoreBackup(ctx, data, admin.NationalID, "nope"), ErrConfirmationFailed)
	require.NoError(t, h.svc.RestoreBackup(ctx, data, admin.NationalID, admin.Password))

	assert.Equal(t, 1, h.remote.Len("hospitals"))
	assert.Equal(t, 1, h.remote.Len("assessments"))
	h.waitFor(t, func(hs []domain.Hospital) bool { return len(hs) == 1 && hs[0].ID == hosp.ID })
	files, err := h.local.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	assert.Error(t, h.svc.RestoreBackup(ctx, []byte(`{"type":"partial"}`), admin.NationalID, admin.Password))
}

func TestStart_ServesLocalSnapshotWhenRemoteDown(t *testing.T) {
	gw := &toggleGateway{MemoryGateway: remote.NewMemoryGateway()}
	first := newHarness(t, gw, nil)
	first.start(t)
	first.addHospital(t)

	gw.down.Store(true)
	second := &harness{svc: New(Deps{Remote: gw, Local: first.local, Logger: zap.NewNop()})}
	second.start(t)

	assert.True(t, second.svc.Offline())
	require.Len(t, second.svc.Hospitals(), 1)
	assert.Equal(t, "Sina", second.svc.Hospitals()[0].Name)
}

func TestStart_ConvergesOnRedisNotification(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mem := remote.NewMemoryGateway()
	h := newHarness(t, mem, listener.NewRedisListener(client, "table_changes", zap.NewNop()))
	h.start(t)

	// Another session writes directly and announces the change.
	other := mutation.NewGateway(mem, zap.NewNop(), mutation.WithPublisher(listener.NewRedisPublisher(client, "table_changes")))
	require.NoError(t, other.UpsertHospital(context.Background(), &domain.Hospital{ID: "H9", Name: "Imam"}))

	h.waitFor(t, func(hs []domain.Hospital) bool { return domain.FindHospital(hs, "H9") != nil })
	assert.False(t, h.svc.Offline())
}

func TestRequestRefresh_NeverBlocks(t *testing.T) {
	h := newHarness(t, remote.NewMemoryGateway(), nil)
	for i := 0; i < 10; i++ {
		h.svc.RequestRefresh()
	}
	assert.Len(t, h.svc.trigger, 1)
}
