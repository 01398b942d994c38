package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prescription status values. The only legal transition is pending -> consumed.
const (
	StatusPending  = "pending"
	StatusConsumed = "consumed"
)

type Prescription struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	Code   string `gorm:"uniqueIndex;not null" json:"code"` // RX-<10 upper alphanumerics>
	Status string `gorm:"not null;default:pending;index" json:"status"`
	Notes  string `json:"notes,omitempty"`
	// Set when the prescription was produced by the audio pipeline.
	AIProcessed   bool               `json:"aiProcessed"`
	Transcription string             `json:"transcription,omitempty"` // raw transcription kept for audit
	AuthorID      string             `gorm:"not null;index;size:36" json:"authorId"`
	Author        *Doctor            `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PatientID     string             `gorm:"not null;index;size:36" json:"patientId"`
	Patient       *Patient           `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Items         []PrescriptionItem `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE" json:"items"`
	ConsumedAt    *time.Time         `json:"consumedAt"`
	CreatedAt     time.Time          `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time          `json:"-"`
}

func (p *Prescription) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PrescriptionItem is immutable after creation.
type PrescriptionItem struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	PrescriptionID string `gorm:"not null;index;size:36" json:"-"`
	Name           string `gorm:"not null" json:"name"`
	Dosage         string `json:"dosage,omitempty"`
	Quantity       *int   `json:"quantity,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
}

func (i *PrescriptionItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
