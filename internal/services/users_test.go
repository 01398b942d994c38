package services

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
)

func strPtr(s string) *string { return &s }

func TestUserManagementIsAdminOnly(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewUserService(gdb)

	for _, role := range []string{models.RoleDoctor, models.RolePatient} {
		if _, err := svc.List(role, DirectoryQuery{}); !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("%s list users: expected forbidden, got %v", role, err)
		}
		if _, err := svc.Create(role, CreateUserInput{}); !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("%s create user: expected forbidden, got %v", role, err)
		}
	}
}

func TestAdminCreatesAnyRole(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewUserService(gdb)

	admin, err := svc.Create(models.RoleAdmin, CreateUserInput{
		Email: "root@test.com", Password: "root123", Name: "Root", Role: models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("role = %q, want admin", admin.Role)
	}

	dr, err := svc.Create(models.RoleAdmin, CreateUserInput{
		Email: "dr2@test.com", Password: "dr1234", Name: "Dr. Two", Role: models.RoleDoctor,
		Specialty: "Pediatría",
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	if dr.Doctor == nil || dr.Doctor.Specialty != "Pediatría" {
		t.Fatalf("doctor profile not created: %+v", dr.Doctor)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	gdb := openTestDB(t)
	_, p1, _ := seedClinic(t, gdb)
	svc := NewUserService(gdb)

	updated, err := svc.Update(models.RoleAdmin, p1.ID, UpdateUserInput{
		Email:    strPtr(" Renamed@Test.com "),
		Name:     strPtr("Renamed"),
		Password: strPtr("newpass1"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "renamed@test.com" || updated.Name != "Renamed" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("newpass1")) != nil {
		t.Fatalf("password not rehashed")
	}

	// taking another user's email is a conflict
	_, err = svc.Update(models.RoleAdmin, p1.ID, UpdateUserInput{Email: strPtr("dr@test.com")})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAdminDeleteUserWithPrescriptionsIsConflict(t *testing.T) {
	gdb := openTestDB(t)
	dr, p1, _ := seedClinic(t, gdb)
	rx := NewPrescriptionService(gdb, fakeTranscriber{}, fakeStructurer{})
	mustCreate(t, rx, dr.ID, p1.Patient.ID)
	svc := NewUserService(gdb)

	// the store's foreign keys guard both sides of the prescription
	if err := svc.Delete(models.RoleAdmin, p1.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("deleting a patient with prescriptions: expected conflict, got %v", err)
	}
	if err := svc.Delete(models.RoleAdmin, dr.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("deleting a doctor with prescriptions: expected conflict, got %v", err)
	}

	// the rejected delete must leave user and profile intact
	kept, err := svc.Get(models.RoleAdmin, p1.ID)
	if err != nil {
		t.Fatalf("patient gone after rejected delete: %v", err)
	}
	if kept.Patient == nil {
		t.Fatalf("patient profile gone after rejected delete")
	}
}

func TestAdminDeleteUserRemovesProfile(t *testing.T) {
	gdb := openTestDB(t)
	_, p1, _ := seedClinic(t, gdb)
	svc := NewUserService(gdb)

	if err := svc.Delete(models.RoleAdmin, p1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(models.RoleAdmin, p1.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("user still present: %v", err)
	}
	var count int64
	if err := gdb.Model(&models.Patient{}).Where("user_id = ?", p1.ID).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 0 {
		t.Fatalf("patient profile survived the delete")
	}
}
