package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hossein925/f-maharat/internal/domain"

	"go.uber.org/zap"
)

var errNoAttachments = errors.New("attachments are not configured")

// Upload is a file supplied by the caller for a new attachment.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// store uploads f under entityID and returns its blob path.
func (s *SyncService) store(ctx context.Context, entityID string, f Upload) (string, error) {
	if s.attachments == nil {
		return "", errNoAttachments
	}
	return s.attachments.Upload(ctx, entityID, f.Name, f.ContentType, f.Data)
}

// discard removes an attachment. Failures are logged; the owning row is
// changed regardless.
func (s *SyncService) discard(ctx context.Context, path string, fields ...zap.Field) {
	if path == "" || s.attachments == nil {
		return
	}
	if err := s.attachments.Delete(ctx, path); err != nil {
		s.logger.Warn("Attachment not removed from blob store",
			append(fields, zap.String("path", path), zap.Error(err))...,
		)
	}
}

// stored writes the row that references a fresh upload and removes the
// upload again when the write fails.
func (s *SyncService) stored(ctx context.Context, path string, err error) error {
	if err != nil {
		s.discard(ctx, path, zap.String("reason", "row write failed"))
	}
	return s.written(err)
}

func (s *SyncService) newMaterial(ctx context.Context, description string, f Upload) (domain.TrainingMaterial, error) {
	m := domain.TrainingMaterial{
		ID:          s.mutations.NewID(),
		Name:        f.Name,
		Type:        f.ContentType,
		Description: description,
	}
	path, err := s.store(ctx, m.ID, f)
	if err != nil {
		return m, err
	}
	m.Path = path
	return m, nil
}

// AddTrainingMaterial uploads f and appends it to the hospital's training
// for month and year, creating the month when absent.
func (s *SyncService) AddTrainingMaterial(ctx context.Context, hospitalID, month string, year int, description string, f Upload) (domain.TrainingMaterial, error) {
	hospitals, err := s.tree()
	if err != nil {
		return domain.TrainingMaterial{}, err
	}
	h := domain.FindHospital(hospitals, hospitalID)
	if h == nil {
		return domain.TrainingMaterial{}, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	m, err := s.newMaterial(ctx, description, f)
	if err != nil {
		return m, err
	}

	training := h.FindTraining(month, year)
	if training == nil {
		training = &domain.MonthlyTraining{HospitalID: hospitalID, Month: month, Year: year}
	}
	training.Materials = append(training.Materials, m)
	return m, s.stored(ctx, m.Path, s.mutations.UpsertMonthlyTraining(ctx, training, hospitalID))
}

// DeleteTrainingMaterial removes a material and its file from the training
// for month and year. The month entry is kept even when it becomes empty.
func (s *SyncService) DeleteTrainingMaterial(ctx context.Context, hospitalID, month string, year int, materialID string) error {
	training, i, err := s.findTrainingMaterial(hospitalID, month, year, materialID)
	if err != nil {
		return err
	}
	s.discard(ctx, training.Materials[i].Path, zap.String("material_id", materialID))
	training.Materials = append(training.Materials[:i], training.Materials[i+1:]...)
	return s.written(s.mutations.UpsertMonthlyTraining(ctx, training, hospitalID))
}

// UpdateTrainingMaterialDescription replaces the description of a material.
func (s *SyncService) UpdateTrainingMaterialDescription(ctx context.Context, hospitalID, month string, year int, materialID, description string) error {
	training, i, err := s.findTrainingMaterial(hospitalID, month, year, materialID)
	if err != nil {
		return err
	}
	training.Materials[i].Description = description
	return s.written(s.mutations.UpsertMonthlyTraining(ctx, training, hospitalID))
}

func (s *SyncService) findTrainingMaterial(hospitalID, month string, year int, materialID string) (*domain.MonthlyTraining, int, error) {
	hospitals, err := s.tree()
	if err != nil {
		return nil, 0, err
	}
	h := domain.FindHospital(hospitals, hospitalID)
	if h == nil {
		return nil, 0, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	training := h.FindTraining(month, year)
	if training == nil {
		return nil, 0, fmt.Errorf("training %s %d: %w", month, year, ErrNotFound)
	}
	i := domain.FindMaterial(training.Materials, materialID)
	if i < 0 {
		return nil, 0, fmt.Errorf("training material %s: %w", materialID, ErrNotFound)
	}
	return training, i, nil
}

// AddAccreditationMaterial uploads f as a hospital accreditation document.
func (s *SyncService) AddAccreditationMaterial(ctx context.Context, hospitalID, description string, f Upload) (domain.AccreditationMaterial, error) {
	hospitals, err := s.tree()
	if err != nil {
		return domain.AccreditationMaterial{}, err
	}
	if domain.FindHospital(hospitals, hospitalID) == nil {
		return domain.AccreditationMaterial{}, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}
	tm, err := s.newMaterial(ctx, description, f)
	if err != nil {
		return domain.AccreditationMaterial{}, err
	}
	m := domain.AccreditationMaterial{
		ID:          tm.ID,
		HospitalID:  hospitalID,
		Name:        tm.Name,
		Type:        tm.Type,
		Description: tm.Description,
		Path:        tm.Path,
	}
	return m, s.stored(ctx, m.Path, s.mutations.UpsertAccreditationMaterial(ctx, &m, hospitalID))
}

// DeleteAccreditationMaterial removes the document row and its file.
func (s *SyncService) DeleteAccreditationMaterial(ctx context.Context, materialID string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	_, m := domain.FindAccreditationMaterial(hospitals, materialID)
	if m == nil {
		return fmt.Errorf("accreditation material %s: %w", materialID, ErrNotFound)
	}
	s.discard(ctx, m.Path, zap.String("material_id", materialID))
	return s.written(s.mutations.DeleteAccreditationMaterial(ctx, materialID))
}

// UpdateAccreditationMaterialDescription replaces the description of a document.
func (s *SyncService) UpdateAccreditationMaterialDescription(ctx context.Context, materialID, description string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	h, m := domain.FindAccreditationMaterial(hospitals, materialID)
	if m == nil {
		return fmt.Errorf("accreditation material %s: %w", materialID, ErrNotFound)
	}
	m.Description = description
	return s.written(s.mutations.UpsertAccreditationMaterial(ctx, m, h.ID))
}

// AddPatientEducationMaterial uploads f and appends it to the department's
// patient education materials.
func (s *SyncService) AddPatientEducationMaterial(ctx context.Context, departmentID, description string, f Upload) (domain.TrainingMaterial, error) {
	hospitals, err := s.tree()
	if err != nil {
		return domain.TrainingMaterial{}, err
	}
	h, d := domain.FindDepartment(hospitals, departmentID)
	if d == nil {
		return domain.TrainingMaterial{}, fmt.Errorf("department %s: %w", departmentID, ErrNotFound)
	}
	m, err := s.newMaterial(ctx, description, f)
	if err != nil {
		return m, err
	}
	d.PatientEducationMaterials = append(d.PatientEducationMaterials, m)
	return m, s.stored(ctx, m.Path, s.mutations.UpsertDepartment(ctx, d, h.ID))
}

// DeletePatientEducationMaterial removes a material and its file from the
// department.
func (s *SyncService) DeletePatientEducationMaterial(ctx context.Context, departmentID, materialID string) error {
	h, d, i, err := s.findEducationMaterial(departmentID, materialID)
	if err != nil {
		return err
	}
	s.discard(ctx, d.PatientEducationMaterials[i].Path, zap.String("material_id", materialID))
	d.PatientEducationMaterials = append(d.PatientEducationMaterials[:i], d.PatientEducationMaterials[i+1:]...)
	return s.written(s.mutations.UpsertDepartment(ctx, d, h.ID))
}

// UpdatePatientEducationMaterialDescription replaces the description of a
// department material.
func (s *SyncService) UpdatePatientEducationMaterialDescription(ctx context.Context, departmentID, materialID, description string) error {
	h, d, i, err := s.findEducationMaterial(departmentID, materialID)
	if err != nil {
		return err
	}
	d.PatientEducationMaterials[i].Description = description
	return s.written(s.mutations.UpsertDepartment(ctx, d, h.ID))
}

func (s *SyncService) findEducationMaterial(departmentID, materialID string) (*domain.Hospital, *domain.Department, int, error) {
	hospitals, err := s.tree()
	if err != nil {
		return nil, nil, 0, err
	}
	h, d := domain.FindDepartment(hospitals, departmentID)
	if d == nil {
		return nil, nil, 0, fmt.Errorf("department %s: %w", departmentID, ErrNotFound)
	}
	i := domain.FindMaterial(d.PatientEducationMaterials, materialID)
	if i < 0 {
		return nil, nil, 0, fmt.Errorf("patient education material %s: %w", materialID, ErrNotFound)
	}
	return h, d, i, nil
}

// AddNewsBanner uploads the banner image and creates the banner.
func (s *SyncService) AddNewsBanner(ctx context.Context, hospitalID, title, description string, image Upload) (domain.NewsBanner, error) {
	b := domain.NewsBanner{HospitalID: hospitalID, Title: title, Description: description}
	hospitals, err := s.tree()
	if err != nil {
		return b, err
	}
	if domain.FindHospital(hospitals, hospitalID) == nil {
		return b, fmt.Errorf("hospital %s: %w", hospitalID, ErrNotFound)
	}

	b.ID = s.mutations.NewID()
	path, err := s.store(ctx, b.ID, image)
	if err != nil {
		return b, err
	}
	b.ImageID = path
	return b, s.stored(ctx, path, s.mutations.UpsertNewsBanner(ctx, &b, hospitalID))
}

// UpdateNewsBanner replaces the title and description of a banner. The image
// is left as is.
func (s *SyncService) UpdateNewsBanner(ctx context.Context, bannerID, title, description string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	h, b := domain.FindNewsBanner(hospitals, bannerID)
	if b == nil {
		return fmt.Errorf("news banner %s: %w", bannerID, ErrNotFound)
	}
	b.Title = title
	b.Description = description
	return s.written(s.mutations.UpsertNewsBanner(ctx, b, h.ID))
}

// DeleteNewsBanner removes the banner and its image. A failed image delete
// is logged and does not stop the row delete.
func (s *SyncService) DeleteNewsBanner(ctx context.Context, bannerID string) error {
	hospitals, err := s.tree()
	if err != nil {
		return err
	}
	_, b := domain.FindNewsBanner(hospitals, bannerID)
	if b == nil {
		return fmt.Errorf("news banner %s: %w", bannerID, ErrNotFound)
	}
	s.discard(ctx, b.ImageID, zap.String("banner_id", bannerID))
	return s.written(s.mutations.DeleteNewsBanner(ctx, bannerID))
}
