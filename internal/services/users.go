package services

import (
	"errors"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/models"
	"github.com/diewo77/go-prescriptions/internal/policy"
)

// UserService is the admin-only user maintenance surface.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

type CreateUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Specialty string `json:"specialty,omitempty"`
}

type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
}

// Create lets an admin create a user of any role, profile included.
func (s *UserService) Create(callerRole string, in CreateUserInput) (*models.User, error) {
	if err := policy.Authorize(callerRole, policy.OpUserManage); err != nil {
		return nil, err
	}
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
	if !models.ValidRole(in.Role) {
		return nil, apperr.Validation("unknown role")
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
	user := models.User{Email: email, Password: string(hash), Name: strings.TrimSpace(in.Name), Role: in.Role}
	switch in.Role {
	case models.RoleDoctor:
		user.Doctor = &models.Doctor{Specialty: strings.TrimSpace(in.Specialty)}
	case models.RolePatient:
		user.Patient = &models.Patient{}
	}
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&user).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email is already registered").
				WithDetails(map[string]string{"constraint": "unique_email"})
		}
		return nil, apperr.Internal("could not create user", err)
	}
	log.Printf("[USERS] admin created %s user %s", user.Role, user.Email)
	return &user, nil
}

// List returns all users, newest first, with optional name/email search.
func (s *UserService) List(callerRole string, q DirectoryQuery) (*PagedResult, error) {
	if err := policy.Authorize(callerRole, policy.OpUserManage); err != nil {
		return nil, err
	}
	page, limit := NormalizePage(q.Page, q.Limit)
	dbq := applySearch(s.DB.Model(&models.User{}), q.Search)
	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, apperr.Internal("could not count users", err)
	}
	var users []models.User
	if err := dbq.Preload("Doctor").Preload("Patient").Order("created_at desc").
		Limit(limit).Offset((page - 1) * limit).Find(&users).Error; err != nil {
		return nil, apperr.Internal("could not list users", err)
	}
	return &PagedResult{Data: users, Meta: NewPageMeta(total, page, limit)}, nil
}

// Get returns one user by id.
func (s *UserService) Get(callerRole, id string) (*models.User, error) {
	if err := policy.Authorize(callerRole, policy.OpUserManage); err != nil {
		return nil, err
	}
	var user models.User
	err := s.DB.Preload("Doctor").Preload("Patient").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	return &user, nil
}

// Update changes name, email or password. Roles are immutable: swapping a
// role would have to move the 1:1 profile, so it is rejected up front.
func (s *UserService) Update(callerRole, id string, in UpdateUserInput) (*models.User, error) {
	if err := policy.Authorize(callerRole, policy.OpUserManage); err != nil {
		return nil, err
	}
	user, err := s.Get(callerRole, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperr.Validation("a valid email is required")
		}
		if email != user.Email {
			var count int64
			if err := s.DB.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Limit(1).Count(&count).Error; err != nil {
				return nil, apperr.Internal("could not check email", err)
			}
			if count > 0 {
				return nil, apperr.Conflict("email is already registered")
			}
			updates["email"] = email
		}
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return nil, apperr.Validation("password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Internal("could not hash password", err)
		}
		updates["password"] = string(hash)
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.Validation("name is required")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.DB.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, apperr.Internal("could not update user", err)
	}
	return s.Get(callerRole, id)
}

// Delete removes a user and its profile. Users whose profile still owns
// prescriptions are protected by the store's foreign keys.
func (s *UserService) Delete(callerRole, id string) error {
	if err := policy.Authorize(callerRole, policy.OpUserManage); err != nil {
		return err
	}
	user, err := s.Get(callerRole, id)
	if err != nil {
		return err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if user.Doctor != nil {
			if err := tx.Delete(&models.Doctor{}, "id = ?", user.Doctor.ID).Error; err != nil {
				return err
			}
		}
		if user.Patient != nil {
			if err := tx.Delete(&models.Patient{}, "id = ?", user.Patient.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return apperr.Conflict("user still owns prescriptions").
				WithDetails(map[string]string{"constraint": "foreign_key"})
		}
		return apperr.Internal("could not delete user", err)
	}
	log.Printf("[USERS] admin deleted user %s", id)
	return nil
}
