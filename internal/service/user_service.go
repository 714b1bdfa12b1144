package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/campus-hub-api/internal/models"
	"github.com/campushub/campus-hub-api/internal/policy"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Department string `json:"department" validate:"required"`
	Year       string `json:"year"`
}

// UserService provides account directory and profile use cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// GetProfile returns the public profile for the given user ID.
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile updates the caller's own profile fields. Role, designation
// and email are not touchable through this path.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	user.FullName = req.FullName
	user.Department = req.Department
	user.Year = req.Year

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// List returns a filtered page of users. Only staff may browse the
// directory.
func (s *UserService) List(ctx context.Context, actor policy.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if actor.Role != models.RoleStaff {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may list accounts")
	}

	filter.Normalize()
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Deactivate soft-disables an account and revokes its sessions. Restricted
// to senior staff, and an account cannot deactivate itself.
func (s *UserService) Deactivate(ctx context.Context, actor policy.Actor, targetID string) error {
	if !actor.Senior() {
		return appErrors.Clone(appErrors.ErrForbidden, "only senior staff may deactivate accounts")
	}
	if actor.ID == targetID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate own account")
	}

	if _, err := s.repo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.SetActive(ctx, targetID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, targetID); err != nil {
		s.logger.Warn("failed to revoke sessions on deactivate", zap.Error(err))
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserDeactivate,
		Resource:   "user",
		ResourceID: &targetID,
		NewValues:  []byte(`{"active":false}`),
	}); err != nil {
		s.logger.Warn("failed to record deactivate audit log", zap.Error(err))
	}

	return nil
}

// Reactivate re-enables a deactivated account. Senior staff only.
func (s *UserService) Reactivate(ctx context.Context, actor policy.Actor, targetID string) error {
	if !actor.Senior() {
		return appErrors.Clone(appErrors.ErrForbidden, "only senior staff may reactivate accounts")
	}

	if _, err := s.repo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.SetActive(ctx, targetID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate user")
	}
	return nil
}
