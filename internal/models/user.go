package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role values stored on User. Admins are created by the seed only.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleDoctor || r == RolePatient
}

// User & auth related models
type User struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"` // stored lowercased/trimmed
	Password string `gorm:"not null" json:"-"`                 // bcrypt hash
	Name     string `gorm:"not null;index" json:"name"`
	Role     string `gorm:"not null;index" json:"role"`
	// SHA-256 hex digest of the active refresh token; nil means logged out.
	HashedRefreshToken *string   `json:"-"`
	Doctor             *Doctor   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
	Patient            *Patient  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"patient,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"-"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Doctor profile, 1:1 with a User of role doctor.
type Doctor struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	UserID    string `gorm:"uniqueIndex;not null;size:36" json:"-"`
	Specialty string `json:"specialty,omitempty"`
	User      *User  `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

func (d *Doctor) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Patient profile, 1:1 with a User of role patient.
type Patient struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"uniqueIndex;not null;size:36" json:"-"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	User      *User      `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

func (p *Patient) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
