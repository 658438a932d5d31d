package service

import (
	"context"
	"strings"

	"toolhub/internal/models"
	"toolhub/internal/repository"
	"toolhub/internal/validation"
)

// UserService owns profile management and role administration.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// UpdateProfileInput carries editable profile fields. Empty strings leave
// the current value in place.
type UpdateProfileInput struct {
	UserID      uint
	FirstName   string
	LastName    string
	PhoneNumber string
	Email       string
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxNameLen = 120

	if in.FirstName != "" {
		if len(in.FirstName) > maxNameLen {
			return nil, models.NewValidationError("First name too long (max 120 characters)")
		}
		user.FirstName = strings.TrimSpace(in.FirstName)
	}
	if in.LastName != "" {
		if len(in.LastName) > maxNameLen {
			return nil, models.NewValidationError("Last name too long (max 120 characters)")
		}
		user.LastName = strings.TrimSpace(in.LastName)
	}
	if in.PhoneNumber != "" {
		if len(in.PhoneNumber) > 32 {
			return nil, models.NewValidationError("Phone number too long")
		}
		user.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	}
	if in.Email != "" {
		email := strings.TrimSpace(in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = email
	}

	// Update maps the unique email constraint to a validation error.
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetRole changes a user's role. Demoting the last librarian is refused so
// the system cannot lock itself out of request review.
func (s *UserService) SetRole(ctx context.Context, targetID uint, role models.Role) (*models.User, error) {
	if role != models.RolePatron && role != models.RoleLibrarian {
		return nil, models.NewValidationError("Unknown role")
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	if user.Role == models.RoleLibrarian && role == models.RolePatron {
		librarians, err := s.userRepo.CountByRole(ctx, models.RoleLibrarian)
		if err != nil {
			return nil, err
		}
		if librarians <= 1 {
			return nil, models.NewStateConflictError("Cannot demote the last librarian")
		}
	}

	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
