package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
)

var codeRe = regexp.MustCompile(`^RX-[A-Z0-9]{10}$`)

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

type fakeStructurer struct {
	out *StructuredPrescription
	err error
}

func (f fakeStructurer) Extract(_ context.Context, _ string) (*StructuredPrescription, error) {
	return f.out, f.err
}

func newRxService(t *testing.T) (*PrescriptionService, *models.User, *models.User, *models.User) {
	t.Helper()
	gdb := openTestDB(t)
	dr, p1, p2 := seedClinic(t, gdb)
	return NewPrescriptionService(gdb, fakeTranscriber{}, fakeStructurer{}), dr, p1, p2
}

func intPtr(n int) *int { return &n }

func TestCreatePrescription(t *testing.T) {
	svc, dr, p1, _ := newRxService(t)

	presc, err := svc.Create(dr.ID, CreatePrescriptionInput{
		PatientID: p1.Patient.ID,
		Notes:     "Tomar con comida",
		Items: []ItemInput{
			{Name: "Ibuprofeno", Dosage: "400 mg", Quantity: intPtr(12), Instructions: "Cada 8 horas"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !codeRe.MatchString(presc.Code) {
		t.Fatalf("bad code format: %q", presc.Code)
	}
	if presc.Status != models.StatusPending {
		t.Fatalf("new prescription should be pending, got %q", presc.Status)
	}
	if presc.ConsumedAt != nil {
		t.Fatalf("consumedAt must start nil")
	}
	if presc.AIProcessed {
		t.Fatalf("manual prescription flagged as AI-processed")
	}
	if len(presc.Items) != 1 || presc.Items[0].Name != "Ibuprofeno" {
		t.Fatalf("items not persisted: %+v", presc.Items)
	}
	if presc.Author == nil || presc.Author.User == nil || presc.Author.User.Email != "dr@test.com" {
		t.Fatalf("author not loaded: %+v", presc.Author)
	}
	if presc.Patient == nil || presc.Patient.User == nil || presc.Patient.User.Email != "patient@test.com" {
		t.Fatalf("patient not loaded: %+v", presc.Patient)
	}

	// codes must differ between prescriptions
	second, err := svc.Create(dr.ID, CreatePrescriptionInput{
		PatientID: p1.Patient.ID,
		Items:     []ItemInput{{Name: "Paracetamol"}},
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Code == presc.Code {
		t.Fatalf("duplicate code %q", second.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, dr, p1, _ := newRxService(t)

	_, err := svc.Create(dr.ID, CreatePrescriptionInput{PatientID: p1.Patient.ID})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("no items: expected validation error, got %v", err)
	}
	_, err = svc.Create(dr.ID, CreatePrescriptionInput{
		PatientID: p1.Patient.ID,
		Items:     []ItemInput{{Name: "   "}},
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("blank item name: expected validation error, got %v", err)
	}
	_, err = svc.Create(dr.ID, CreatePrescriptionInput{
		PatientID: p1.Patient.ID,
		Items:     []ItemInput{{Name: "Ibuprofeno", Quantity: intPtr(0)}},
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("zero quantity: expected validation error, got %v", err)
	}
	_, err = svc.Create(dr.ID, CreatePrescriptionInput{
		PatientID: "missing-patient",
		Items:     []ItemInput{{Name: "Ibuprofeno"}},
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown patient: expected not found, got %v", err)
	}
}

func TestCreateRequiresDoctor(t *testing.T) {
	svc, _, p1, p2 := newRxService(t)

	_, err := svc.Create(p1.ID, CreatePrescriptionInput{
		PatientID: p2.Patient.ID,
		Items:     []ItemInput{{Name: "Ibuprofeno"}},
	})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("patient creating a prescription: expected forbidden, got %v", err)
	}
}

func mustCreate(t *testing.T, svc *PrescriptionService, drUserID, patientProfileID string, items ...ItemInput) *models.Prescription {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{Name: "Amoxicilina", Dosage: "500 mg"}}
	}
	presc, err := svc.Create(drUserID, CreatePrescriptionInput{PatientID: patientProfileID, Items: items})
	if err != nil {
		t.Fatalf("create prescription: %v", err)
	}
	return presc
}

func TestConsumeLifecycle(t *testing.T) {
	svc, dr, p1, p2 := newRxService(t)
	presc := mustCreate(t, svc, dr.ID, p1.Patient.ID)

	// only the owning patient may consume
	if _, err := svc.Consume(dr.ID, presc.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("doctor consume: expected forbidden, got %v", err)
	}
	if _, err := svc.Consume(p2.ID, presc.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("other patient consume: expected forbidden, got %v", err)
	}

	consumed, err := svc.Consume(p1.ID, presc.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.Status != models.StatusConsumed {
		t.Fatalf("status = %q, want consumed", consumed.Status)
	}
	if consumed.ConsumedAt == nil {
		t.Fatalf("consumedAt not set")
	}

	// a second consume is rejected and the original timestamp survives
	if _, err := svc.Consume(p1.ID, presc.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("double consume: expected conflict, got %v", err)
	}
	again, err := svc.GetByID(p1.ID, presc.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ConsumedAt == nil || !again.ConsumedAt.Equal(*consumed.ConsumedAt) {
		t.Fatalf("consumedAt changed on rejected consume: %v vs %v", again.ConsumedAt, consumed.ConsumedAt)
	}

	if _, err := svc.Consume(p1.ID, "missing-id"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing prescription: expected not found, got %v", err)
	}
}

func TestReadOwnership(t *testing.T) {
	svc, dr, p1, p2 := newRxService(t)
	admin := seedAdmin(t, svc.DB)
	presc := mustCreate(t, svc, dr.ID, p1.Patient.ID)

	if _, err := svc.GetByID(p1.ID, presc.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.GetByID(dr.ID, presc.ID); err != nil {
		t.Fatalf("doctor read: %v", err)
	}
	if _, err := svc.GetByID(admin.ID, presc.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if _, err := svc.GetByID(p2.ID, presc.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("foreign patient read: expected forbidden, got %v", err)
	}
}

func TestDownloadPolicyExcludesDoctors(t *testing.T) {
	svc, dr, p1, p2 := newRxService(t)
	admin := seedAdmin(t, svc.DB)
	presc := mustCreate(t, svc, dr.ID, p1.Patient.ID)

	if _, err := svc.Document(p1.ID, presc.ID); err != nil {
		t.Fatalf("owner download: %v", err)
	}
	if _, err := svc.Document(admin.ID, presc.ID); err != nil {
		t.Fatalf("admin download: %v", err)
	}
	if _, err := svc.Document(dr.ID, presc.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("doctor download: expected forbidden, got %v", err)
	}
	if _, err := svc.Document(p2.ID, presc.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("foreign patient download: expected forbidden, got %v", err)
	}
}

func TestListingScopes(t *testing.T) {
	svc, dr, p1, p2 := newRxService(t)

	for i := 0; i < 3; i++ {
		mustCreate(t, svc, dr.ID, p1.Patient.ID)
	}
	mustCreate(t, svc, dr.ID, p2.Patient.ID)

	authored, err := svc.ListAuthored(dr.ID, ListFilter{})
	if err != nil {
		t.Fatalf("list authored: %v", err)
	}
	if authored.Meta.Total != 4 {
		t.Fatalf("doctor should see 4 authored, got %d", authored.Meta.Total)
	}

	mine, err := svc.ListMine(p1.ID, ListFilter{})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if mine.Meta.Total != 3 {
		t.Fatalf("patient1 should see 3, got %d", mine.Meta.Total)
	}

	all, err := svc.ListAll(models.RoleAdmin, ListFilter{PatientID: p2.Patient.ID})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.Meta.Total != 1 {
		t.Fatalf("admin filter by patient should see 1, got %d", all.Meta.Total)
	}

	if _, err := svc.ListAll(models.RoleDoctor, ListFilter{}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("doctor on admin listing: expected forbidden, got %v", err)
	}
	if _, err := svc.ListAuthored(p1.ID, ListFilter{}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("patient on authored listing: expected forbidden, got %v", err)
	}
}

func TestListingPaginationAndFilters(t *testing.T) {
	svc, dr, p1, _ := newRxService(t)

	var first *models.Prescription
	for i := 0; i < 5; i++ {
		p := mustCreate(t, svc, dr.ID, p1.Patient.ID)
		if first == nil {
			first = p
		}
	}
	if _, err := svc.Consume(p1.ID, first.ID); err != nil {
		t.Fatalf("consume: %v", err)
	}

	page2, err := svc.ListMine(p1.ID, ListFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if page2.Meta.Total != 5 || page2.Meta.TotalPages != 3 || page2.Meta.Page != 2 {
		t.Fatalf("bad meta: %+v", page2.Meta)
	}
	rows, ok := page2.Data.([]models.Prescription)
	if !ok {
		t.Fatalf("unexpected data type %T", page2.Data)
	}
	if len(rows) != 2 {
		t.Fatalf("page 2 should hold 2 rows, got %d", len(rows))
	}

	pending, err := svc.ListMine(p1.ID, ListFilter{Status: models.StatusPending})
	if err != nil {
		t.Fatalf("filter pending: %v", err)
	}
	if pending.Meta.Total != 4 {
		t.Fatalf("expected 4 pending, got %d", pending.Meta.Total)
	}

	if _, err := svc.ListMine(p1.ID, ListFilter{Status: "expired"}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("bad status filter: expected validation error, got %v", err)
	}
}

func TestCreateFromAudio(t *testing.T) {
	gdb := openTestDB(t)
	dr, p1, _ := seedClinic(t, gdb)
	svc := NewPrescriptionService(gdb,
		fakeTranscriber{text: "Ibuprofeno cuatrocientos miligramos cada ocho horas"},
		fakeStructurer{out: &StructuredPrescription{
			Items: []StructuredItem{{Name: "Ibuprofeno", Dosage: "400 mg", Instructions: "Cada 8 horas"}},
		}},
	)

	presc, err := svc.CreateFromAudio(context.Background(), dr.ID, p1.Patient.ID, []byte("audio-bytes"), "dictado.ogg")
	if err != nil {
		t.Fatalf("create from audio: %v", err)
	}
	if !presc.AIProcessed {
		t.Fatalf("audio prescription must be flagged as AI-processed")
	}
	if presc.Transcription == "" {
		t.Fatalf("raw transcription must be kept")
	}
	if presc.Notes == "" {
		t.Fatalf("default notes expected when the structurer returns none")
	}
	if len(presc.Items) != 1 || presc.Items[0].Name != "Ibuprofeno" {
		t.Fatalf("items not persisted: %+v", presc.Items)
	}
}

func TestCreateFromAudioFailuresPersistNothing(t *testing.T) {
	gdb := openTestDB(t)
	dr, p1, _ := seedClinic(t, gdb)

	countRx := func() int64 {
		var n int64
		if err := gdb.Model(&models.Prescription{}).Count(&n).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	// empty transcription
	svc := NewPrescriptionService(gdb, fakeTranscriber{text: "   "}, fakeStructurer{})
	_, err := svc.CreateFromAudio(context.Background(), dr.ID, p1.Patient.ID, []byte("x"), "a.mp3")
	if !apperr.IsKind(err, apperr.KindTranscription) {
		t.Fatalf("empty transcription: expected transcription error, got %v", err)
	}

	// structurer finds no medications
	svc = NewPrescriptionService(gdb,
		fakeTranscriber{text: "hola doctor"},
		fakeStructurer{out: &StructuredPrescription{}},
	)
	_, err = svc.CreateFromAudio(context.Background(), dr.ID, p1.Patient.ID, []byte("x"), "a.mp3")
	if !apperr.IsKind(err, apperr.KindExtraction) {
		t.Fatalf("no items: expected extraction error, got %v", err)
	}

	// empty upload never reaches the transcriber
	_, err = svc.CreateFromAudio(context.Background(), dr.ID, p1.Patient.ID, nil, "a.mp3")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("empty audio: expected validation error, got %v", err)
	}

	if n := countRx(); n != 0 {
		t.Fatalf("failed pipeline persisted %d prescriptions", n)
	}
}
