// Package policy is the single authorization checkpoint. Every resource
// service calls Authorize (and RequireOwner where a resource has an owning
// patient) before touching the store, so the whole access table lives here
// and is testable in isolation.
package policy

import (
	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
)

// Operation names one guarded action on a resource class.
type Operation string

const (
	OpPrescriptionCreate       Operation = "prescription.create"
	OpPrescriptionListAll      Operation = "prescription.list_all"
	OpPrescriptionListAuthored Operation = "prescription.list_authored"
	OpPrescriptionListOwn      Operation = "prescription.list_own"
	OpPrescriptionRead         Operation = "prescription.read"
	OpPrescriptionConsume      Operation = "prescription.consume"
	OpPrescriptionDownload     Operation = "prescription.download"
	OpDoctorList               Operation = "doctor.list"
	OpPatientList              Operation = "patient.list"
	OpUserManage               Operation = "user.manage"
)

// allowed is the role -> operation table. Ownership restrictions on read,
// consume and download are enforced separately via RequireOwner.
var allowed = map[Operation]map[string]bool{
	OpPrescriptionCreate:       {models.RoleDoctor: true},
	OpPrescriptionListAll:      {models.RoleAdmin: true},
	OpPrescriptionListAuthored: {models.RoleDoctor: true},
	OpPrescriptionListOwn:      {models.RolePatient: true},
	OpPrescriptionRead:         {models.RoleAdmin: true, models.RoleDoctor: true, models.RolePatient: true},
	OpPrescriptionConsume:      {models.RolePatient: true},
	OpPrescriptionDownload:     {models.RoleAdmin: true, models.RolePatient: true},
	OpDoctorList:               {models.RoleAdmin: true},
	OpPatientList:              {models.RoleAdmin: true, models.RoleDoctor: true},
	OpUserManage:               {models.RoleAdmin: true},
}

// Allows reports whether the role may perform the operation at all.
func Allows(role string, op Operation) bool {
	return allowed[op][role]
}

// Authorize returns a typed error when the role is missing or the table
// denies the operation. It never consults the store.
func Authorize(role string, op Operation) error {
	if role == "" {
		return apperr.Unauthenticated("missing credentials")
	}
	if !Allows(role, op) {
		return apperr.Forbidden("role " + role + " may not perform " + string(op))
	}
	return nil
}

// RequireOwner compares a resource's owning patient profile id against the
// caller's own profile id. The caller's id must come from a store lookup of
// the authenticated user, never from client input. A mismatch or a missing
// profile is an explicit denial, not a silent filter.
func RequireOwner(resourcePatientID, callerPatientID string) error {
	if callerPatientID == "" {
		return apperr.Forbidden("caller has no patient profile")
	}
	if resourcePatientID != callerPatientID {
		return apperr.Forbidden("prescription belongs to another patient")
	}
	return nil
}
