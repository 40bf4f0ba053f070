package services

import (
	"context"
	"errors"

	"github.com/newsdesk/apiserver/internal/store"
	"github.com/newsdesk/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

// Delete removes a user. The acting user may never delete themself;
// this holds even for admins, so an instance cannot lose its last
// administrator by accident.
func (s *UserService) Delete(ctx context.Context, actor types.User, id int) error {
	if actor.ID == id {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, id)
}

// EnsureAdmin creates the bootstrap admin account if no user with the
// given username exists. A blank password disables seeding.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if password == "" {
		return nil
	}
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Name:         username,
		Role:         types.RoleAdmin,
		PasswordHash: string(hash),
	})
	return err
}
