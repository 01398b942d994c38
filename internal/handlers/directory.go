package handlers

import (
	"net/http"

	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/services"
)

type DirectoryHandler struct {
	Svc *services.DirectoryService
}

func NewDirectoryHandler(svc *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{Svc: svc}
}

func directoryQuery(r *http.Request) services.DirectoryQuery {
	q := r.URL.Query()
	return services.DirectoryQuery{
		Search:    q.Get("search"),
		Specialty: q.Get("specialty"),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	}
}

// Doctors handles GET /doctors (admin).
func (h *DirectoryHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.ListDoctors(claims.Role, directoryQuery(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// Patients handles GET /patients (admin, doctor).
func (h *DirectoryHandler) Patients(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.ListPatients(claims.Role, directoryQuery(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}
