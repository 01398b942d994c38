package handlers

import (
	"net/http"

	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/services"
)

// UserHandler is the admin user maintenance surface under /admin/users.
type UserHandler struct {
	Svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{Svc: svc}
}

// Create handles POST /admin/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var in services.CreateUserInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	user, err := h.Svc.Create(claims.Role, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, user)
}

// List handles GET /admin/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.List(claims.Role, directoryQuery(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// Get handles GET /admin/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	user, err := h.Svc.Get(claims.Role, r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, user)
}

// Update handles PUT /admin/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var in services.UpdateUserInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	user, err := h.Svc.Update(claims.Role, r.PathValue("id"), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, user)
}

// Delete handles DELETE /admin/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.Svc.Delete(claims.Role, r.PathValue("id")); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]string{"message": "user deleted"})
}
