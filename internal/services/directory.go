package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
	"github.com/diewo77/go-prescriptions/internal/policy"
)

// DirectoryService serves the doctor and patient listings.
type DirectoryService struct {
	DB *gorm.DB
}

func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{DB: db}
}

// DirectoryQuery carries the shared listing parameters.
type DirectoryQuery struct {
	Search    string // case-insensitive substring on name/email
	Specialty string // doctors only
	Page      int
	Limit     int
}

// DoctorEntry is one row of the doctor listing.
type DoctorEntry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Doctor    struct {
		ID            string `json:"id"`
		Specialty     string `json:"specialty,omitempty"`
		Prescriptions int64  `json:"prescriptions"`
	} `json:"doctor"`
}

// PatientEntry is one row of the patient listing.
type PatientEntry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Patient   struct {
		ID            string     `json:"id"`
		BirthDate     *time.Time `json:"birthDate,omitempty"`
		Prescriptions int64      `json:"prescriptions"`
	} `json:"patient"`
}

func applySearch(q *gorm.DB, search string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" {
		return q
	}
	like := "%" + strings.ToLower(search) + "%"
	return q.Where("lower(name) LIKE ? OR lower(email) LIKE ?", like, like)
}

// ListDoctors is admin-only per the policy table.
func (s *DirectoryService) ListDoctors(callerRole string, q DirectoryQuery) (*PagedResult, error) {
	if err := policy.Authorize(callerRole, policy.OpDoctorList); err != nil {
		return nil, err
	}
	page, limit := NormalizePage(q.Page, q.Limit)

	dbq := applySearch(s.DB.Model(&models.User{}).Where("role = ?", models.RoleDoctor), q.Search)
	if sp := strings.TrimSpace(q.Specialty); sp != "" {
		like := "%" + strings.ToLower(sp) + "%"
		dbq = dbq.Where("id IN (?)", s.DB.Model(&models.Doctor{}).
			Select("user_id").Where("lower(specialty) LIKE ?", like))
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count doctors", err)
	}
	var users []models.User
	if err := dbq.Preload("Doctor").Order("created_at desc").
		Limit(limit).Offset((page - 1) * limit).Find(&users).Error; err != nil {
		return nil, apperr.Internal("could not list doctors", err)
	}

	counts, err := s.prescriptionCounts("author_id")
	if err != nil {
		return nil, err
	}
	entries := make([]DoctorEntry, 0, len(users))
	for _, u := range users {
		e := DoctorEntry{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
		if u.Doctor != nil {
			e.Doctor.ID = u.Doctor.ID
			e.Doctor.Specialty = u.Doctor.Specialty
			e.Doctor.Prescriptions = counts[u.Doctor.ID]
		}
		entries = append(entries, e)
	}
	return &PagedResult{Data: entries, Meta: NewPageMeta(total, page, limit)}, nil
}

// ListPatients is available to admins and doctors.
func (s *DirectoryService) ListPatients(callerRole string, q DirectoryQuery) (*PagedResult, error) {
	if err := policy.Authorize(callerRole, policy.OpPatientList); err != nil {
		return nil, err
	}
	page, limit := NormalizePage(q.Page, q.Limit)

	dbq := applySearch(s.DB.Model(&models.User{}).Where("role = ?", models.RolePatient), q.Search)
	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count patients", err)
	}
	var users []models.User
	if err := dbq.Preload("Patient").Order("created_at desc").
		Limit(limit).Offset((page - 1) * limit).Find(&users).Error; err != nil {
		return nil, apperr.Internal("could not list patients", err)
	}

	counts, err := s.prescriptionCounts("patient_id")
	if err != nil {
		return nil, err
	}
	entries := make([]PatientEntry, 0, len(users))
	for _, u := range users {
		e := PatientEntry{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
		if u.Patient != nil {
			e.Patient.ID = u.Patient.ID
			e.Patient.BirthDate = u.Patient.BirthDate
			e.Patient.Prescriptions = counts[u.Patient.ID]
		}
		entries = append(entries, e)
	}
	return &PagedResult{Data: entries, Meta: NewPageMeta(total, page, limit)}, nil
}

// prescriptionCounts returns prescription totals grouped by the given owner
// column (author_id or patient_id).
func (s *DirectoryService) prescriptionCounts(column string) (map[string]int64, error) {
	type row struct {
		Owner string
		N     int64
	}
	var rows []row
	err := s.DB.Model(&models.Prescription{}).
		Select(column + " as owner, count(*) as n").
		Group(column).Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("could not count prescriptions", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Owner] = r.N
	}
	return out, nil
}
