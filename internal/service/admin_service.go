package service

import (
	"context"
	"strings"

	"propertyhub/internal/models"
	"propertyhub/internal/repository"
	"propertyhub/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const errInvalidCredentials = "Invalid email or password"

type RegisterAdminInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminService struct {
	repo       repository.AdminRepository
	bcryptCost int
}

func NewAdminService(repo repository.AdminRepository) *AdminService {
	return &AdminService{repo: repo, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AdminService) WithBcryptCost(cost int) *AdminService {
	s.bcryptCost = cost
	return s
}

// Register creates an admin with a bcrypt-hashed password.
func (s *AdminService) Register(ctx context.Context, in RegisterAdminInput) (*models.Admin, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = models.NormalizeEmail(in.Email)

	if len(validation.MissingFields(in)) > 0 {
		return nil, models.NewValidationError("All fields are required")
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	admin := &models.Admin{
		FullName: in.FullName,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// Authenticate returns the admin matching email and password. Unknown emails and
// wrong passwords fail identically.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (*models.Admin, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewUnauthorizedError(errInvalidCredentials)
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError(errInvalidCredentials)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError(errInvalidCredentials)
	}
	return admin, nil
}

func (s *AdminService) GetAdmin(ctx context.Context, id uint) (*models.Admin, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	return s.repo.List(ctx)
}
