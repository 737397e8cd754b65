package user

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch Patch) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo        Repository
	adminEmails []string
}

// NewService builds the account service. Accounts registered with an address listed in
// adminEmails get the admin role.
func NewService(repo Repository, adminEmails []string) Service {
	emails := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			emails = append(emails, e)
		}
	}
	return &service{repo: repo, adminEmails: emails}
}

func (s *service) isAdminEmail(email string) bool {
	return slices.Contains(s.adminEmails, normalizeEmail(email))
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if input.Password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return nil, fmt.Errorf("service: internal error hashing password: %w", err)
	}

	u := &User{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: string(hash),
		Role:         RoleUser,
	}
	if s.isAdminEmail(u.Email) {
		u.Role = RoleAdmin
	}

	id, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}
	u.ID = id

	log.Info().Stringer("user_id", u.ID).Str("role", u.Role.String()).Msg("service: user registered")
	return u, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to get user by email in repository")
		return nil, fmt.Errorf("service: failed to authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: password mismatch")
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id in repository")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}

	return u, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users in repository")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}

	return users, nil
}

func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, patch Patch) (*User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		u.Email = normalizeEmail(*patch.Email)
	}
	if patch.Role != nil {
		role, err := ParseRole(string(*patch.Role))
		if err != nil {
			return nil, err
		}
		u.Role = role
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update user")
		return nil, fmt.Errorf("service: failed to update user by id '%s': %w", id, err)
	}

	return u, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to delete user")
		return fmt.Errorf("service: failed to delete user by id '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Msg("service: user deleted")
	return nil
}
