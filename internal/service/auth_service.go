package service

import (
	"context"
	"strings"
	"time"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/jwt"
	"github.com/litdeck/litdeck/internal/pkg/password"
	"github.com/litdeck/litdeck/internal/pkg/timeutil"
	"github.com/litdeck/litdeck/internal/repo"
)

type AuthService struct {
	users     *repo.UserRepo
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users *repo.UserRepo, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", appErr.ErrInvalid
	}
	if len(plainPassword) < 8 {
		return nil, "", appErr.ErrInvalid
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, "", err
	}
	now := timeutil.NowMilli()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
