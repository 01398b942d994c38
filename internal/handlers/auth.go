package handlers

import (
	"net/http"

	"github.com/diewo77/go-prescriptions/internal/auth"
	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/services"
)

type AuthHandler struct {
	Svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Specialty string `json:"specialty,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	birth, err := parseDate(req.BirthDate)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.Register(services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Role:      req.Role,
		Specialty: req.Specialty,
		BirthDate: birth,
		Phone:     req.Phone,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, res)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	res, err := h.Svc.Login(req.Email, req.Password)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, res)
}

// Refresh handles POST /auth/refresh. The refresh token comes in the body or,
// failing that, as a bearer token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// body is optional here, so decode errors only matter when nothing else
	// carries the token
	_ = decode(r, &req)
	presented := req.RefreshToken
	if presented == "" {
		presented, _ = auth.BearerToken(r)
	}
	pair, err := h.Svc.Refresh(presented)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, pair)
}

// Logout handles POST /auth/logout (authenticated).
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.Svc.Logout(claims.Subject); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

// Profile handles GET /auth/profile (authenticated).
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, err := mustClaims(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	user, err := h.Svc.Profile(claims.Subject)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, user)
}
