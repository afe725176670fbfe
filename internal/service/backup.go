package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/localstore"
	"github.com/Hossein925/f-maharat/internal/mutation"
	"github.com/Hossein925/f-maharat/internal/schema"

	"go.uber.org/zap"
)

// BackupType tags a full backup document.
const BackupType = "full_backup"

// Backup is a full export of the hospital tree and cached attachments.
type Backup struct {
	Type      string            `json:"type"`
	Hospitals []domain.Hospital `json:"hospitals"`
	Files     []localstore.File `json:"files"`
}

// ExportBackup serializes the current snapshot and every cached attachment.
func (s *SyncService) ExportBackup(ctx context.Context) ([]byte, error) {
	backup := Backup{Type: BackupType, Hospitals: s.Hospitals(), Files: []localstore.File{}}
	if s.attachments != nil {
		files, err := s.attachments.Files(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cached files: %w", err)
		}
		backup.Files = files
	}
	return json.MarshalIndent(backup, "", "  ")
}

// RestoreBackup replaces all remote data with the backup and reloads the
// attachment cache from it. The administrator's credentials confirm it.
//
// Every current hospital is deleted, then the backup tree is written in one
// unit of work. A failed commit returns a *mutation.StepError.
func (s *SyncService) RestoreBackup(ctx context.Context, data []byte, nationalID, password string) error {
	if !credentialsMatch(s.admin, nationalID, password) {
		s.logger.Warn("Backup restore rejected")
		return ErrConfirmationFailed
	}
	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if backup.Type != BackupType {
		return fmt.Errorf("unsupported backup type %q", backup.Type)
	}

	u := s.mutations.Begin()
	for _, h := range s.Hospitals() {
		u.Delete(schema.KindHospital, h.ID)
	}
	for _, h := range backup.Hospitals {
		if err := recordTree(u, h); err != nil {
			return fmt.Errorf("hospital %s: %w", h.ID, err)
		}
	}
	if err := u.Commit(ctx); err != nil {
		return err
	}

	if s.attachments != nil {
		if backup.Files == nil {
			backup.Files = []localstore.File{}
		}
		if err := s.attachments.ReplaceFiles(ctx, backup.Files); err != nil {
			return err
		}
	}
	s.logger.Info("Backup restored",
		zap.Int("hospital_count", len(backup.Hospitals)),
		zap.Int("file_count", len(backup.Files)),
		zap.Int("writes", u.Len()),
	)
	return s.written(nil)
}

// recordTree records an upsert for every row of h, parents before children.
func recordTree(u *mutation.UnitOfWork, h domain.Hospital) error {
	if h.ID == "" {
		return errors.New("hospital without id")
	}
	var err error
	add := func(kind schema.Kind, node any, parentID string) {
		if err == nil {
			_, err = u.Upsert(kind, node, parentID)
		}
	}

	add(schema.KindHospital, h, "")
	for _, d := range h.Departments {
		add(schema.KindDepartment, d, h.ID)
		for _, member := range d.Staff {
			add(schema.KindStaff, member, d.ID)
			for _, a := range member.Assessments {
				add(schema.KindAssessment, a, member.ID)
			}
			for _, w := range member.WorkLogs {
				add(schema.KindWorkLog, w, member.ID)
			}
		}
		for _, p := range d.Patients {
			add(schema.KindPatient, p, d.ID)
		}
	}
	for _, c := range h.ChecklistTemplates {
		add(schema.KindChecklistTemplate, c, h.ID)
	}
	for _, e := range h.ExamTemplates {
		add(schema.KindExamTemplate, e, h.ID)
	}
	for _, m := range h.TrainingMaterials {
		add(schema.KindTrainingMaterial, m, h.ID)
	}
	for _, m := range h.AccreditationMaterials {
		add(schema.KindAccreditationMaterial, m, h.ID)
	}
	for _, b := range h.NewsBanners {
		add(schema.KindNewsBanner, b, h.ID)
	}
	for _, m := range h.AdminMessages {
		add(schema.KindAdminMessage, m, h.ID)
	}
	for _, n := range h.NeedsAssessments {
		add(schema.KindNeedsAssessment, n, h.ID)
	}
	return err
}
