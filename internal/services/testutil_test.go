package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-prescriptions/internal/db"
	"github.com/diewo77/go-prescriptions/internal/models"
	"github.com/diewo77/go-prescriptions/internal/token"
)

// openTestDB gives each test its own in-memory sqlite store with the full
// schema applied.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestTokens() *token.Service {
	return token.NewService("test-access", "test-refresh", time.Minute, time.Hour)
}

// seedClinic registers one doctor and two patients and returns their users
// with profiles attached.
func seedClinic(t *testing.T, gdb *gorm.DB) (doctor, patient1, patient2 *models.User) {
	t.Helper()
	auth := NewAuthService(gdb, newTestTokens())

	dr, err := auth.Register(RegisterInput{
		Email: "dr@test.com", Password: "dr1234", Name: "Dr. House", Role: models.RoleDoctor,
		Specialty: "Medicina general",
	})
	if err != nil {
		t.Fatalf("register doctor: %v", err)
	}
	p1, err := auth.Register(RegisterInput{
		Email: "patient@test.com", Password: "patient123", Name: "Pat One", Role: models.RolePatient,
	})
	if err != nil {
		t.Fatalf("register patient1: %v", err)
	}
	p2, err := auth.Register(RegisterInput{
		Email: "patient2@test.com", Password: "patient123", Name: "Pat Two", Role: models.RolePatient,
	})
	if err != nil {
		t.Fatalf("register patient2: %v", err)
	}
	return dr.User, p1.User, p2.User
}

// seedAdmin inserts an admin directly; registration never mints admins.
func seedAdmin(t *testing.T, gdb *gorm.DB) *models.User {
	t.Helper()
	admin := models.User{Email: "admin@test.com", Password: "x", Name: "Admin", Role: models.RoleAdmin}
	if err := gdb.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return &admin
}
