package db

import (
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-prescriptions/internal/models"
)

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
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestSeedCreatesDemoAccounts(t *testing.T) {
	gdb := openTestDB(t)
	if err := Seed(gdb); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var admin models.User
	if err := gdb.Where("email = ?", "admin@test.com").First(&admin).Error; err != nil {
		t.Fatalf("admin missing: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("admin role = %q", admin.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("admin123")) != nil {
		t.Fatalf("admin password not hashed from the seed value")
	}

	var dr models.User
	if err := gdb.Preload("Doctor").Where("email = ?", "dr@test.com").First(&dr).Error; err != nil {
		t.Fatalf("doctor missing: %v", err)
	}
	if dr.Doctor == nil || dr.Doctor.Specialty != "Medicina general" {
		t.Fatalf("doctor profile not seeded: %+v", dr.Doctor)
	}

	var patient models.User
	if err := gdb.Preload("Patient").Where("email = ?", "patient@test.com").First(&patient).Error; err != nil {
		t.Fatalf("patient missing: %v", err)
	}
	if patient.Patient == nil || patient.Patient.BirthDate == nil {
		t.Fatalf("patient profile not seeded: %+v", patient.Patient)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	if err := Seed(gdb); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := Seed(gdb); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	var count int64
	if err := gdb.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 seeded users, got %d", count)
	}
}

func TestNormalizeDSN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@h:5432/db?sslmode=disable", "postgres://u:p@h:5432/db?sslmode=disable"},
		{"  \"postgresql://u:p@h/db\"  ", "postgresql://u:p@h/db"},
		{"host=localhost user=u dbname=db", "host=localhost user=u dbname=db sslmode=disable"},
		{"host=localhost   user=u  sslmode=require", "host=localhost user=u sslmode=require"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeDSN(c.in); got != c.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
