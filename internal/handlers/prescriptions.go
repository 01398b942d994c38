package handlers

import (
	"io"
	"net/http"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/pdf"
	"github.com/diewo77/go-prescriptions/internal/services"
)

// maxAudioBytes caps the audio upload for the from-audio endpoint.
const maxAudioBytes = 15 << 20

type PrescriptionHandler struct {
	Svc *services.PrescriptionService
}

func NewPrescriptionHandler(svc *services.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{Svc: svc}
}

func listFilter(r *http.Request) (services.ListFilter, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return services.ListFilter{}, err
	}
	to, err := queryDateEnd(r, "to")
	if err != nil {
		return services.ListFilter{}, err
	}
	q := r.URL.Query()
	return services.ListFilter{
		Status:    q.Get("status"),
		From:      from,
		To:        to,
		DoctorID:  q.Get("doctorId"),
		PatientID: q.Get("patientId"),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
		Order:     q.Get("order"),
	}, nil
}

// Create handles POST /prescriptions (doctor).
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var in services.CreatePrescriptionInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	presc, err := h.Svc.Create(claims.Subject, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, presc)
}

// CreateFromAudio handles POST /prescriptions/from-audio (doctor). Expects a
// multipart form with an "audio" file part and a "patientId" field.
func (h *PrescriptionHandler) CreateFromAudio(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		httpx.Error(w, r, apperr.Validation("expected a multipart form with an audio file"))
		return
	}
	patientID := r.FormValue("patientId")
	if patientID == "" {
		httpx.Error(w, r, apperr.Validation("patientId is required"))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		httpx.Error(w, r, apperr.Validation("audio file is required"))
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("could not read audio upload", err))
		return
	}

	presc, err := h.Svc.CreateFromAudio(r.Context(), claims.Subject, patientID, audio, header.Filename)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, presc)
}

// ListAuthored handles GET /prescriptions (doctor).
func (h *PrescriptionHandler) ListAuthored(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	f, err := listFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.ListAuthored(claims.Subject, f)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// ListAll handles GET /prescriptions/admin (admin).
func (h *PrescriptionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	f, err := listFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.ListAll(claims.Role, f)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// ListMine handles GET /prescriptions/me (patient).
func (h *PrescriptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	f, err := listFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.ListMine(claims.Subject, f)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// Get handles GET /prescriptions/{id}.
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	presc, err := h.Svc.GetByID(claims.Subject, r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, presc)
}

// Consume handles PUT /prescriptions/{id}/consume (owning patient).
func (h *PrescriptionHandler) Consume(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	presc, err := h.Svc.Consume(claims.Subject, r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, presc)
}

// Download handles GET /prescriptions/{id}/pdf (admin or owning patient).
func (h *PrescriptionHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	presc, err := h.Svc.Document(claims.Subject, r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	doc, err := pdf.Render(presc)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("could not render document", err))
		return
	}
	httpx.Binary(w, "application/pdf", pdf.Filename(presc.Code), doc)
}
