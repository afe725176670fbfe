package domain

// FindHospital returns the hospital with id, or nil.
func FindHospital(hospitals []Hospital, id string) *Hospital {
	for i := range hospitals {
		if hospitals[i].ID == id {
			return &hospitals[i]
		}
	}
	return nil
}

// FindDepartment returns the department with id and its hospital, or nils.
func FindDepartment(hospitals []Hospital, id string) (*Hospital, *Department) {
	for i := range hospitals {
		h := &hospitals[i]
		for j := range h.Departments {
			if h.Departments[j].ID == id {
				return h, &h.Departments[j]
			}
		}
	}
	return nil, nil
}

// FindStaff returns the staff member with id and its ancestors, or nils.
func FindStaff(hospitals []Hospital, id string) (*Hospital, *Department, *StaffMember) {
	for i := range hospitals {
		h := &hospitals[i]
		for j := range h.Departments {
			d := &h.Departments[j]
			for k := range d.Staff {
				if d.Staff[k].ID == id {
					return h, d, &d.Staff[k]
				}
			}
		}
	}
	return nil, nil, nil
}

// FindPatient returns the patient with id and its department, or nils.
func FindPatient(hospitals []Hospital, id string) (*Department, *Patient) {
	for i := range hospitals {
		h := &hospitals[i]
		for j := range h.Departments {
			d := &h.Departments[j]
			for k := range d.Patients {
				if d.Patients[k].ID == id {
					return d, &d.Patients[k]
				}
			}
		}
	}
	return nil, nil
}

// FindAssessment returns the assessment of s for month and year, or nil.
func (s *StaffMember) FindAssessment(month string, year int) *Assessment {
	for i := range s.Assessments {
		if s.Assessments[i].Month == month && s.Assessments[i].Year == year {
			return &s.Assessments[i]
		}
	}
	return nil
}

// FindWorkLog returns the work log of s for month and year, or nil.
func (s *StaffMember) FindWorkLog(month string, year int) *MonthlyWorkLog {
	for i := range s.WorkLogs {
		if s.WorkLogs[i].Month == month && s.WorkLogs[i].Year == year {
			return &s.WorkLogs[i]
		}
	}
	return nil
}

// FindNeedsAssessment returns the needs assessment of h for month and year, or nil.
func (h *Hospital) FindNeedsAssessment(month string, year int) *MonthlyNeedsAssessment {
	for i := range h.NeedsAssessments {
		if h.NeedsAssessments[i].Month == month && h.NeedsAssessments[i].Year == year {
			return &h.NeedsAssessments[i]
		}
	}
	return nil
}

// FindNewsBanner returns the banner with id and its hospital, or nils.
func FindNewsBanner(hospitals []Hospital, id string) (*Hospital, *NewsBanner) {
	for i := range hospitals {
		h := &hospitals[i]
		for j := range h.NewsBanners {
			if h.NewsBanners[j].ID == id {
				return h, &h.NewsBanners[j]
			}
		}
	}
	return nil, nil
}

// FindTraining returns the training entry of h for month and year, or nil.
func (h *Hospital) FindTraining(month string, year int) *MonthlyTraining {
	for i := range h.TrainingMaterials {
		if h.TrainingMaterials[i].Month == month && h.TrainingMaterials[i].Year == year {
			return &h.TrainingMaterials[i]
		}
	}
	return nil
}

// FindAccreditationMaterial returns the material with id and its hospital, or nils.
func FindAccreditationMaterial(hospitals []Hospital, id string) (*Hospital, *AccreditationMaterial) {
	for i := range hospitals {
		h := &hospitals[i]
		for j := range h.AccreditationMaterials {
			if h.AccreditationMaterials[j].ID == id {
				return h, &h.AccreditationMaterials[j]
			}
		}
	}
	return nil, nil
}

// FindMaterial returns the index of the material with id, or -1.
func FindMaterial(materials []TrainingMaterial, id string) int {
	for i := range materials {
		if materials[i].ID == id {
			return i
		}
	}
	return -1
}
