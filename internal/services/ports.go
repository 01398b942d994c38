package services

import "context"

// Transcriber converts dictated audio into free text. Implementations must
// enforce their own timeout and surface upstream failures as typed errors.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// StructuredItem is one medication extracted from a transcription.
type StructuredItem struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Quantity     *int   `json:"quantity,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// StructuredPrescription is the schema the structuring adapter must return.
type StructuredPrescription struct {
	Notes string           `json:"notes,omitempty"`
	Items []StructuredItem `json:"items"`
}

// Structurer extracts medications from transcribed text, restricted to
// information explicitly present in it.
type Structurer interface {
	Extract(ctx context.Context, text string) (*StructuredPrescription, error)
}
