// Package httpx writes the API's response envelopes. Every JSON success is
// wrapped as {statusCode, timestamp, path, method, data}; errors add
// {error, message, details?}. Binary responses (PDF) are sent unwrapped.
package httpx

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-prescriptions/internal/apperr"
)

type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Data       any    `json:"data"`
}

type ErrorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	env := Envelope{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       r.URL.Path,
		Method:     r.Method,
		Data:       data,
	}
	write(w, status, env)
}

// Error writes the error envelope for any error. Unknown errors are treated
// as internal: logged with their cause, sent with a sanitized message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	status := ae.Status()
	msg := ae.Message
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s -> %d | %s | %v", r.Method, r.URL.Path, status, ae.Name(), err)
		msg = "internal server error"
	}
	env := ErrorEnvelope{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       r.URL.Path,
		Method:     r.Method,
		Error:      ae.Name(),
		Message:    msg,
		Details:    ae.Details,
	}
	write(w, status, env)
}

// Raw writes an error envelope with an explicit status and error name, for
// conditions the error taxonomy does not model (rate limiting).
func Raw(w http.ResponseWriter, r *http.Request, status int, name, msg string) {
	env := ErrorEnvelope{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       r.URL.Path,
		Method:     r.Method,
		Error:      name,
		Message:    msg,
	}
	write(w, status, env)
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(payload)
	if err != nil {
		// best-effort error response; avoid writing partial JSON
		http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

// Binary streams a document download, bypassing the envelope.
func Binary(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		_ = err
	}
}
