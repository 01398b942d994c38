package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
	"github.com/diewo77/go-prescriptions/internal/token"
)

// AuthService owns registration, login and the refresh-token lifecycle.
// The store handle is injected; there is no package-level state.
type AuthService struct {
	DB     *gorm.DB
	Tokens *token.Service
}

func NewAuthService(db *gorm.DB, tokens *token.Service) *AuthService {
	return &AuthService{DB: db, Tokens: tokens}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	// doctor only
	Specialty string `json:"specialty,omitempty"`
	// patient only
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Phone     string     `json:"phone,omitempty"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// NormalizeEmail trims and lowercases, the canonical form for storage and
// uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user and its role profile atomically, then opens a
// session by issuing a token pair. Admin accounts come from the seed only.
func (s *AuthService) Register(in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Role != models.RoleDoctor && in.Role != models.RolePatient {
		return nil, apperr.Validation("role must be doctor or patient")
	}

	var count int64
	if err := s.DB.Model(&models.User{}).Where("email = ?", email).Limit(1).Count(&count).Error; err != nil {
		return nil, apperr.Internal("could not check email", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}

	user := models.User{
		Email:    email,
		Password: string(hash),
		Name:     strings.TrimSpace(in.Name),
		Role:     in.Role,
	}
	switch in.Role {
	case models.RoleDoctor:
		user.Doctor = &models.Doctor{Specialty: strings.TrimSpace(in.Specialty)}
	case models.RolePatient:
		user.Patient = &models.Patient{BirthDate: in.BirthDate, Phone: strings.TrimSpace(in.Phone)}
	}

	// User and profile are one atomic unit.
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&user).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email is already registered").
				WithDetails(map[string]string{"constraint": "unique_email"})
		}
		return nil, apperr.Internal("could not create user", err)
	}

	pair, err := s.openSession(&user)
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] registered %s user %s", user.Role, user.Email)
	return &AuthResult{User: &user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Login verifies credentials and rotates in a fresh token pair. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	var user models.User
	err := s.DB.Preload("Doctor").Preload("Patient").Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	pair, err := s.openSession(&user)
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] login %s", user.Email)
	return &AuthResult{User: &user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// openSession issues a pair and overwrites the stored refresh digest,
// invalidating any previously issued refresh token.
func (s *AuthService) openSession(user *models.User) (*token.Pair, error) {
	pair, err := s.Tokens.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal("could not issue tokens", err)
	}
	digest := token.Digest(pair.RefreshToken)
	if err := s.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("hashed_refresh_token", digest).Error; err != nil {
		return nil, apperr.Internal("could not persist refresh token", err)
	}
	return &pair, nil
}

// Refresh validates a presented refresh token against both its signature and
// the stored digest, then rotates: the new digest replaces the old one in a
// single conditional update, so a concurrently rotated or reused token loses.
func (s *AuthService) Refresh(presented string) (*token.Pair, error) {
	claims, err := s.Tokens.VerifyRefresh(presented)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid refresh token")
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", claims.Subject).Error; err != nil {
		return nil, apperr.Unauthenticated("invalid refresh token")
	}
	if user.HashedRefreshToken == nil {
		// logged out: every outstanding refresh token is dead
		return nil, apperr.Unauthenticated("invalid refresh token")
	}
	if !token.DigestMatches(*user.HashedRefreshToken, presented) {
		// either a stale token from before a later login/refresh, or reuse
		// of a rotated token
		log.Printf("[AUTH] refresh token mismatch for user %s", user.ID)
		return nil, apperr.Unauthenticated("invalid refresh token")
	}

	pair, err := s.Tokens.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal("could not issue tokens", err)
	}
	newDigest := token.Digest(pair.RefreshToken)
	res := s.DB.Model(&models.User{}).
		Where("id = ? AND hashed_refresh_token = ?", user.ID, *user.HashedRefreshToken).
		Update("hashed_refresh_token", newDigest)
	if res.Error != nil {
		return nil, apperr.Internal("could not rotate refresh token", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost a race against a concurrent refresh or logout
		return nil, apperr.Unauthenticated("invalid refresh token")
	}
	return &pair, nil
}

// Logout clears the stored digest, permanently revoking all outstanding
// refresh tokens for the user.
func (s *AuthService) Logout(userID string) error {
	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("hashed_refresh_token", nil).Error; err != nil {
		return apperr.Internal("could not log out", err)
	}
	log.Printf("[AUTH] logout user %s", userID)
	return nil
}

// Profile returns the sanitized user with its role profile attached.
func (s *AuthService) Profile(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.Preload("Doctor").Preload("Patient").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	return &user, nil
}
