package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error)
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, member *models.StaffMember) error
	Update(ctx context.Context, member *models.StaffMember) error
	Delete(ctx context.Context, id string) error
}

// CreateStaffRequest registers a staff member. Exactly one of Teacher or
// Employee must be present and must match Role.
type CreateStaffRequest struct {
	CPF       string                  `json:"cpf" validate:"required"`
	FullName  string                  `json:"full_name" validate:"required"`
	Email     string                  `json:"email" validate:"required,email"`
	Password  string                  `json:"password" validate:"required,min=8"`
	Phone     string                  `json:"phone"`
	Address   string                  `json:"address"`
	WorkHours string                  `json:"work_hours"`
	BirthDate time.Time               `json:"birth_date" validate:"required"`
	Role      models.StaffRole        `json:"role" validate:"required"`
	Teacher   *models.TeacherProfile  `json:"teacher,omitempty"`
	Employee  *models.EmployeeProfile `json:"employee,omitempty"`
}

// UpdateStaffRequest updates a staff member's data and profile.
type UpdateStaffRequest struct {
	CPF       string                  `json:"cpf" validate:"required"`
	FullName  string                  `json:"full_name" validate:"required"`
	Email     string                  `json:"email" validate:"required,email"`
	Phone     string                  `json:"phone"`
	Address   string                  `json:"address"`
	WorkHours string                  `json:"work_hours"`
	BirthDate time.Time               `json:"birth_date" validate:"required"`
	Teacher   *models.TeacherProfile  `json:"teacher,omitempty"`
	Employee  *models.EmployeeProfile `json:"employee,omitempty"`
}

// StaffService manages staff accounts and their role profiles.
type StaffService struct {
	repo      staffRepository
	subjects  subjectReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs StaffService.
func NewStaffService(repo staffRepository, subjects subjectReader, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns staff members, optionally narrowed to one role.
func (s *StaffService) List(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	if role != "" && !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown staff role")
	}
	members, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return members, nil
}

// Get returns a staff member by id.
func (s *StaffService) Get(ctx context.Context, id string) (*models.StaffMember, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return member, nil
}

// Create registers a staff member with a hashed password.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if err := s.checkProfile(ctx, req.Role, req.Teacher, req.Employee); err != nil {
		return nil, err
	}
	exists, err := s.repo.EmailExists(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	member := &models.StaffMember{
		CPF:          req.CPF,
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		Address:      req.Address,
		WorkHours:    req.WorkHours,
		BirthDate:    req.BirthDate,
		Role:         req.Role,
		Teacher:      req.Teacher,
		Employee:     req.Employee,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	s.logger.Info("staff member created", zap.String("staff_id", member.ID), zap.String("role", string(member.Role)))
	return member, nil
}

// Update overwrites a staff member's data and profile. The role is
// immutable; the profile must keep matching it.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkProfile(ctx, member.Role, req.Teacher, req.Employee); err != nil {
		return nil, err
	}
	exists, err := s.repo.EmailExists(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	member.CPF = req.CPF
	member.FullName = req.FullName
	member.Email = req.Email
	member.Phone = req.Phone
	member.Address = req.Address
	member.WorkHours = req.WorkHours
	member.BirthDate = req.BirthDate
	member.Teacher = req.Teacher
	member.Employee = req.Employee
	if err := s.repo.Update(ctx, member); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	return member, nil
}

// Delete removes a staff member.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff member")
	}
	s.logger.Info("staff member deleted", zap.String("staff_id", id))
	return nil
}

// checkProfile enforces the role/profile pairing and verifies any subject
// codes a teacher claims to teach.
func (s *StaffService) checkProfile(ctx context.Context, role models.StaffRole, teacher *models.TeacherProfile, employee *models.EmployeeProfile) error {
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown staff role")
	}
	switch role {
	case models.StaffRoleTeacher:
		if teacher == nil || employee != nil {
			return appErrors.Clone(appErrors.ErrValidation, "teacher role requires a teacher profile")
		}
		for _, code := range teacher.SubjectCodes {
			if _, err := s.subjects.FindByCode(ctx, code); err != nil {
				if err == sql.ErrNoRows {
					return appErrors.Clone(appErrors.ErrValidation, "unknown subject code "+code)
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject code")
			}
		}
	case models.StaffRoleEmployee:
		if employee == nil || teacher != nil {
			return appErrors.Clone(appErrors.ErrValidation, "employee role requires an employee profile")
		}
	}
	return nil
}
