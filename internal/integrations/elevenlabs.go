// Package integrations holds the outbound HTTP adapters: ElevenLabs
// speech-to-text and OpenAI structuring. Both enforce request timeouts and
// convert upstream failures into the typed adapter errors, so a slow or
// broken upstream can never hang or leak through a request.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/diewo77/go-prescriptions/internal/apperr"
)

const elevenLabsBase = "https://api.elevenlabs.io/v1"

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
}

// ElevenLabs transcribes dictated audio via the speech-to-text endpoint.
type ElevenLabs struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		APIKey:  apiKey,
		BaseURL: elevenLabsBase,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func audioContentType(filename string) string {
	if ct, ok := audioContentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "audio/mpeg"
}

// Transcribe uploads the audio and returns the transcribed text. Upstream
// status and body are surfaced in the error on failure.
func (c *ElevenLabs) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if c.APIKey == "" {
		return "", apperr.Transcription("ElevenLabs API key not configured", nil)
	}
	if filename == "" {
		filename = "audio.ogg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", audioContentType(filename))
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", apperr.Transcription("could not build upload", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", apperr.Transcription("could not build upload", err)
	}
	if err := mw.WriteField("model_id", "scribe_v1"); err != nil {
		return "", apperr.Transcription("could not build upload", err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.Transcription("could not build upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/speech-to-text", &buf)
	if err != nil {
		return "", apperr.Transcription("could not build request", err)
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", apperr.Transcription("transcription request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Transcription(
			fmt.Sprintf("transcription failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperr.Transcription("unexpected transcription response", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", apperr.Transcription("empty response from ElevenLabs", nil)
	}
	return out.Text, nil
}
