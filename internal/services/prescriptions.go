package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
	"github.com/diewo77/go-prescriptions/internal/policy"
)

// PrescriptionService owns the prescription lifecycle: creation (manual and
// audio-derived), listing, the consume transition and the document view.
// Every operation starts with a policy evaluation for the caller's role,
// followed by the ownership check where the resource has an owning patient.
type PrescriptionService struct {
	DB          *gorm.DB
	Transcriber Transcriber
	Structurer  Structurer
}

func NewPrescriptionService(db *gorm.DB, tr Transcriber, st Structurer) *PrescriptionService {
	return &PrescriptionService{DB: db, Transcriber: tr, Structurer: st}
}

type ItemInput struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Quantity     *int   `json:"quantity,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type CreatePrescriptionInput struct {
	PatientID string      `json:"patientId"`
	Notes     string      `json:"notes,omitempty"`
	Items     []ItemInput `json:"items"`
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newCode builds RX-<10 random uppercase alphanumerics> from crypto/rand.
func newCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 10)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "RX-" + string(out), nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return apperr.Validation("item name is required")
		}
		if it.Quantity != nil && *it.Quantity <= 0 {
			return apperr.Validation("item quantity must be a positive integer")
		}
	}
	return nil
}

// callerFor loads the authenticated user with both profiles. Identity and
// profile ids are resolved from the store, never taken from client input.
func (s *PrescriptionService) callerFor(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.Preload("Doctor").Preload("Patient").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbidden("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	return &user, nil
}

// authorCaller admits only callers with a doctor profile.
func (s *PrescriptionService) authorCaller(userID string, op policy.Operation) (*models.User, error) {
	caller, err := s.callerFor(userID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(caller.Role, op); err != nil {
		return nil, err
	}
	if caller.Doctor == nil {
		return nil, apperr.Forbidden("caller has no doctor profile")
	}
	return caller, nil
}

// subjectCaller admits only callers with a patient profile.
func (s *PrescriptionService) subjectCaller(userID string, op policy.Operation) (*models.User, error) {
	caller, err := s.callerFor(userID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(caller.Role, op); err != nil {
		return nil, err
	}
	if caller.Patient == nil {
		return nil, apperr.Forbidden("caller has no patient profile")
	}
	return caller, nil
}

func (s *PrescriptionService) targetPatient(patientID string) (*models.Patient, error) {
	var target models.Patient
	err := s.DB.First(&target, "id = ?", patientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load patient", err)
	}
	return &target, nil
}

// Create persists a prescription with all its items as one transaction.
func (s *PrescriptionService) Create(doctorUserID string, in CreatePrescriptionInput) (*models.Prescription, error) {
	caller, err := s.authorCaller(doctorUserID, policy.OpPrescriptionCreate)
	if err != nil {
		return nil, err
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	target, err := s.targetPatient(in.PatientID)
	if err != nil {
		return nil, err
	}

	presc, err := s.persist(caller.Doctor.ID, target.ID, in.Notes, in.Items, false, "")
	if err != nil {
		return nil, err
	}
	log.Printf("[RX] doctor %s created prescription %s for patient %s", doctorUserID, presc.Code, target.ID)
	return presc, nil
}

// CreateFromAudio runs the same checks as Create, then the transcription and
// structuring adapters, and persists the result tagged as AI-derived with the
// raw transcription kept for audit. Nothing is written when either adapter
// fails.
func (s *PrescriptionService) CreateFromAudio(ctx context.Context, doctorUserID, patientID string, audio []byte, filename string) (*models.Prescription, error) {
	caller, err := s.authorCaller(doctorUserID, policy.OpPrescriptionCreate)
	if err != nil {
		return nil, err
	}
	target, err := s.targetPatient(patientID)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, apperr.Validation("audio file is empty")
	}

	text, err := s.Transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		if apperr.IsKind(err, apperr.KindTranscription) {
			return nil, err
		}
		return nil, apperr.Transcription("could not transcribe audio", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Transcription("transcription came back empty", nil)
	}

	structured, err := s.Structurer.Extract(ctx, text)
	if err != nil {
		if apperr.IsKind(err, apperr.KindExtraction) {
			return nil, err
		}
		return nil, apperr.Extraction("could not structure transcription", err)
	}
	if structured == nil || len(structured.Items) == 0 {
		return nil, apperr.Extraction("no medications could be extracted from the audio", nil)
	}

	items := make([]ItemInput, 0, len(structured.Items))
	for _, it := range structured.Items {
		items = append(items, ItemInput{Name: it.Name, Dosage: it.Dosage, Quantity: it.Quantity, Instructions: it.Instructions})
	}
	if err := validateItems(items); err != nil {
		return nil, apperr.Extraction("structuring adapter returned invalid items", err)
	}

	notes := structured.Notes
	if notes == "" {
		notes = "Prescripción creada por audio. Transcripción: " + text
	}

	presc, err := s.persist(caller.Doctor.ID, target.ID, notes, items, true, text)
	if err != nil {
		return nil, err
	}
	log.Printf("[RX] doctor %s created prescription %s from audio (%d items)", doctorUserID, presc.Code, len(items))
	return presc, nil
}

// persist writes the prescription and its items atomically and reloads it
// with the relations the API exposes.
func (s *PrescriptionService) persist(authorID, patientID, notes string, items []ItemInput, aiProcessed bool, transcription string) (*models.Prescription, error) {
	code, err := newCode()
	if err != nil {
		return nil, apperr.Internal("could not generate code", err)
	}
	presc := models.Prescription{
		Code:          code,
		Status:        models.StatusPending,
		Notes:         notes,
		AIProcessed:   aiProcessed,
		Transcription: transcription,
		AuthorID:      authorID,
		PatientID:     patientID,
	}
	for _, it := range items {
		presc.Items = append(presc.Items, models.PrescriptionItem{
			Name:         strings.TrimSpace(it.Name),
			Dosage:       it.Dosage,
			Quantity:     it.Quantity,
			Instructions: it.Instructions,
		})
	}
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&presc).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("prescription code collision, retry").
				WithDetails(map[string]string{"constraint": "unique_code"})
		}
		return nil, apperr.Internal("could not create prescription", err)
	}
	return s.load(presc.ID)
}

func (s *PrescriptionService) load(id string) (*models.Prescription, error) {
	var presc models.Prescription
	err := s.DB.Preload("Items").
		Preload("Author").Preload("Author.User").
		Preload("Patient").Preload("Patient.User").
		First(&presc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("prescription not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load prescription", err)
	}
	return &presc, nil
}

// ListFilter carries the optional listing parameters shared by the doctor,
// patient and admin listings.
type ListFilter struct {
	Status    string
	From      *time.Time
	To        *time.Time
	DoctorID  string // admin only
	PatientID string // admin only
	Page      int
	Limit     int
	Order     string // asc | desc, default desc on creation time
}

func (f ListFilter) apply(q *gorm.DB) (*gorm.DB, error) {
	if f.Status != "" {
		if f.Status != models.StatusPending && f.Status != models.StatusConsumed {
			return nil, apperr.Validation("status must be pending or consumed")
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q, nil
}

func (f ListFilter) orderClause() string {
	if strings.EqualFold(f.Order, "asc") {
		return "created_at asc"
	}
	return "created_at desc"
}

// page runs count + find with the shared preloads and builds the meta block.
func (s *PrescriptionService) page(q *gorm.DB, f ListFilter) (*PagedResult, error) {
	page, limit := NormalizePage(f.Page, f.Limit)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count prescriptions", err)
	}
	var prescs []models.Prescription
	err := q.Preload("Items").
		Preload("Author").Preload("Author.User").
		Preload("Patient").Preload("Patient.User").
		Order(f.orderClause()).
		Limit(limit).Offset((page - 1) * limit).
		Find(&prescs).Error
	if err != nil {
		return nil, apperr.Internal("could not list prescriptions", err)
	}
	return &PagedResult{Data: prescs, Meta: NewPageMeta(total, page, limit)}, nil
}

// ListAuthored returns the calling doctor's own prescriptions.
func (s *PrescriptionService) ListAuthored(doctorUserID string, f ListFilter) (*PagedResult, error) {
	caller, err := s.authorCaller(doctorUserID, policy.OpPrescriptionListAuthored)
	if err != nil {
		return nil, err
	}
	q, aerr := f.apply(s.DB.Model(&models.Prescription{}).Where("author_id = ?", caller.Doctor.ID))
	if aerr != nil {
		return nil, aerr
	}
	return s.page(q, f)
}

// ListAll is the admin listing with any combination of filters.
func (s *PrescriptionService) ListAll(callerRole string, f ListFilter) (*PagedResult, error) {
	if err := policy.Authorize(callerRole, policy.OpPrescriptionListAll); err != nil {
		return nil, err
	}
	q, aerr := f.apply(s.DB.Model(&models.Prescription{}))
	if aerr != nil {
		return nil, aerr
	}
	if f.DoctorID != "" {
		q = q.Where("author_id = ?", f.DoctorID)
	}
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	return s.page(q, f)
}

// ListMine returns the calling patient's prescriptions as subject.
func (s *PrescriptionService) ListMine(patientUserID string, f ListFilter) (*PagedResult, error) {
	caller, err := s.subjectCaller(patientUserID, policy.OpPrescriptionListOwn)
	if err != nil {
		return nil, err
	}
	q, aerr := f.apply(s.DB.Model(&models.Prescription{}).Where("patient_id = ?", caller.Patient.ID))
	if aerr != nil {
		return nil, aerr
	}
	return s.page(q, f)
}

// GetByID applies the read policy: admins and doctors may read any
// prescription, patients only their own. The role gate runs before the
// existence check so callers outside the policy never learn whether the id
// exists.
func (s *PrescriptionService) GetByID(callerUserID, prescriptionID string) (*models.Prescription, error) {
	caller, err := s.callerFor(callerUserID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(caller.Role, policy.OpPrescriptionRead); err != nil {
		return nil, err
	}
	presc, err := s.load(prescriptionID)
	if err != nil {
		return nil, err
	}
	if caller.Role == models.RolePatient {
		if err := policy.RequireOwner(presc.PatientID, patientIDOf(caller)); err != nil {
			return nil, err
		}
	}
	return presc, nil
}

// Consume performs the single legal transition pending -> consumed for the
// owning patient. The status flip is a conditional update, so two concurrent
// consume calls cannot both win and a second call is rejected, leaving the
// first consumedAt untouched.
func (s *PrescriptionService) Consume(callerUserID, prescriptionID string) (*models.Prescription, error) {
	caller, err := s.subjectCaller(callerUserID, policy.OpPrescriptionConsume)
	if err != nil {
		return nil, err
	}

	var presc models.Prescription
	err = s.DB.First(&presc, "id = ?", prescriptionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("prescription not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load prescription", err)
	}
	if err := policy.RequireOwner(presc.PatientID, caller.Patient.ID); err != nil {
		return nil, err
	}
	if presc.Status == models.StatusConsumed {
		return nil, apperr.Conflict("prescription was already consumed")
	}

	now := time.Now().UTC()
	res := s.DB.Model(&models.Prescription{}).
		Where("id = ? AND status = ?", presc.ID, models.StatusPending).
		Updates(map[string]any{"status": models.StatusConsumed, "consumed_at": now})
	if res.Error != nil {
		return nil, apperr.Internal("could not consume prescription", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("prescription was already consumed")
	}
	log.Printf("[RX] patient %s consumed prescription %s", caller.Patient.ID, presc.Code)
	return s.load(presc.ID)
}

// Document applies the download policy — admins and the owning patient only,
// doctors excluded — and returns the fully loaded prescription for the
// renderer.
func (s *PrescriptionService) Document(callerUserID, prescriptionID string) (*models.Prescription, error) {
	caller, err := s.callerFor(callerUserID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(caller.Role, policy.OpPrescriptionDownload); err != nil {
		return nil, err
	}
	presc, err := s.load(prescriptionID)
	if err != nil {
		return nil, err
	}
	if caller.Role == models.RolePatient {
		if err := policy.RequireOwner(presc.PatientID, patientIDOf(caller)); err != nil {
			return nil, err
		}
	}
	return presc, nil
}

func patientIDOf(u *models.User) string {
	if u.Patient == nil {
		return ""
	}
	return u.Patient.ID
}
