package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dekyc/apiserver/internal/store"
	"github.com/dekyc/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

// Create stores a new account. New accounts start pending KYC review.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.Status == "" {
		user.Status = types.StatusPending
	}
	if user.DocType == "" {
		user.DocType = types.DocCitizenship
	}
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

// EnsureAdmin creates an administrator account unless one with the same
// email already exists. An existing account is promoted to admin.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (types.User, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, false, errors.New("admin email and password are required")
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, err
	}
	if err == nil {
		if strings.EqualFold(existing.Role, types.RoleAdmin) && existing.PasswordHash != "" {
			return existing, false, nil
		}
		existing.Role = types.RoleAdmin
		// Accounts without a password (seeded users) get the bootstrap one
		// so the promoted admin can log in.
		if existing.PasswordHash == "" {
			hashed, err := hashAdminPassword(password)
			if err != nil {
				return types.User{}, false, err
			}
			existing.PasswordHash = hashed
		}
		updated, err := s.repo.Update(ctx, existing)
		return updated, false, err
	}

	hashed, err := hashAdminPassword(password)
	if err != nil {
		return types.User{}, false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	admin, err := s.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Role:         types.RoleAdmin,
		PasswordHash: hashed,
	})
	if err != nil {
		return types.User{}, false, err
	}
	return admin, true, nil
}

func hashAdminPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin password: %w", err)
	}
	return string(hashed), nil
}
