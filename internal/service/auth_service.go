package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"postboard/internal/model"
	"postboard/internal/repository"
	"postboard/internal/util"

	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*model.User, error)
	// Login checks credentials and returns the user with a signed token
	Login(ctx context.Context, req LoginRequest) (*model.User, string, error)
	GetUser(ctx context.Context, userID uint) (*model.User, error)
}

type authService struct {
	store     repository.Store
	jwtSecret string
	jwtTTL    time.Duration
}

func NewAuthService(store repository.Store, jwtSecret string, jwtTTL time.Duration) AuthService {
	return &authService{
		store:     store,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// Register creates an account with a bcrypt-hashed password
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := util.Validate(req); err != nil {
		return nil, validationError(err.Error())
	}

	// Check if username already exists; the unique index is the final word
	if _, err := s.store.Users().FindByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internalError("failed to look up user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, internalError("failed to create user", err)
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*model.User, string, error) {
	if err := util.Validate(req); err != nil {
		return nil, "", validationError(err.Error())
	}

	user, err := s.store.Users().FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", internalError("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := util.GenerateToken(user.ID, user.Username, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", internalError("failed to generate token", err)
	}

	return user, token, nil
}

func (s *authService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	return ensureUser(ctx, s.store, userID)
}

// ensureUser loads the acting user; a token for a deleted account is unauthorized
func ensureUser(ctx context.Context, store repository.Store, userID uint) (*model.User, error) {
	user, err := store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("failed to look up user", err)
	}
	return user, nil
}
