package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/services"
)

const openAIBase = "https://api.openai.com/v1"

// The extraction contract: only what the dictation explicitly states, no
// inference. Kept in Spanish as the dictations are Spanish.
const extractionSystemPrompt = `Eres un asistente médico que extrae información de dictados de prescripciones médicas.
Reglas:
- Extrae ÚNICAMENTE lo que esté explícitamente mencionado en el texto. NO infieras ni inventes.
- Si un dato (dosis, cantidad, frecuencia, duración, vía) NO aparece, déjalo vacío u omítelo (según el esquema).
- No incluyas datos del paciente, diagnóstico ni otros datos no solicitados.

Salida (según el esquema):
1) items: lista de medicamentos.
   Para cada item:
   - name: nombre del medicamento o producto (obligatorio).
   - dosage: solo la dosificación o presentación mencionada (ej: "500 mg", "10 ml", "2 tabletas").
   - quantity: número de unidades si se menciona (solo números). Si dice "una caja" pero no hay número, NO adivines.
   - instructions: junta aquí TODO lo indicado sobre uso: frecuencia, vía, duración y observaciones.

2) notes: cualquier nota general (si existe) que no pertenezca a un medicamento específico.

Devuelve SOLO el JSON válido con la estructura solicitada.`

// prescriptionSchema is the json_schema response_format sent to OpenAI.
var prescriptionSchema = map[string]any{
	"name": "Prescription",
	"schema": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"notes": map[string]any{
				"type":        "string",
				"description": "General notes or observations about the prescription (optional)",
			},
			"items": map[string]any{
				"type":        "array",
				"description": "List of prescribed medications or treatments",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":         map[string]any{"type": "string", "description": "Name of the medication or product"},
						"dosage":       map[string]any{"type": "string", "description": "Dosage information (e.g. '500mg', '10ml') (optional)"},
						"quantity":     map[string]any{"type": "number", "description": "Number of units prescribed (optional)"},
						"instructions": map[string]any{"type": "string", "description": "Instructions for use (optional)"},
					},
					"required":             []string{"name"},
					"additionalProperties": false,
				},
				"minItems": 1,
			},
		},
		"required":             []string{"items"},
		"additionalProperties": false,
	},
}

// OpenAI structures free-text transcriptions into prescription items.
type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: openAIBase,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract sends the transcription through chat completions with a strict
// response schema and parses the structured result.
func (c *OpenAI) Extract(ctx context.Context, text string) (*services.StructuredPrescription, error) {
	if c.APIKey == "" {
		return nil, apperr.Extraction("OpenAI API key not configured", nil)
	}

	payload := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": text},
		},
		"response_format": map[string]any{
			"type":        "json_schema",
			"json_schema": prescriptionSchema,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Extraction("could not build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Extraction("could not build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Extraction("structuring request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Extraction(
			fmt.Sprintf("structuring failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperr.Extraction("unexpected structuring response", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, apperr.Extraction("empty content from OpenAI", nil)
	}

	var structured services.StructuredPrescription
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &structured); err != nil {
		return nil, apperr.Extraction("invalid JSON from OpenAI", err)
	}
	if len(structured.Items) == 0 {
		return nil, apperr.Extraction("no medications extracted", nil)
	}
	return &structured, nil
}
