package db

import (
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/models"
)

// Seed creates the demo accounts used in development. Existing users are
// left alone so the seed stays idempotent. Admins are only ever created
// here; registration refuses the admin role.
func Seed(db *gorm.DB) error {
	seedUser := func(email, password, name, role, specialty string, birthDate *time.Time, phone string) error {
		var count int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Limit(1).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := models.User{Email: email, Password: string(hash), Name: name, Role: role}
		switch role {
		case models.RoleDoctor:
			user.Doctor = &models.Doctor{Specialty: specialty}
		case models.RolePatient:
			user.Patient = &models.Patient{BirthDate: birthDate, Phone: phone}
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("[DB] seeded %s user %s", role, email)
		return nil
	}

	birthA := time.Date(1995, 3, 22, 0, 0, 0, 0, time.UTC)
	birthB := time.Date(1988, 11, 2, 0, 0, 0, 0, time.UTC)

	if err := seedUser("admin@test.com", "admin123", "Admin Prueba", models.RoleAdmin, "", nil, ""); err != nil {
		return err
	}
	if err := seedUser("dr@test.com", "dr123", "Doctor Prueba", models.RoleDoctor, "Medicina general", nil, ""); err != nil {
		return err
	}
	if err := seedUser("patient@test.com", "patient123", "Paciente Prueba A", models.RolePatient, "", &birthA, "+57 300 000 0001"); err != nil {
		return err
	}
	return seedUser("patient2@test.com", "patient123", "Paciente Prueba B", models.RolePatient, "", &birthB, "+57 300 000 0002")
}
