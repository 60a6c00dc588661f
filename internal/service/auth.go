package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AuthService issues and verifies bearer tokens.
type AuthService struct {
	userRepo repository.UserRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService creates a new AuthService signing HS256 tokens with secret.
func NewAuthService(userRepo repository.UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

type actorClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult holds a signed token and the account it was issued for.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login checks credentials and issues a token.
// Unknown logins and wrong passwords yield the same error.
func (s *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := actorClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate verifies a token and returns the actor of the request.
// The account is re-read so that deleted users lose access immediately.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (domain.Actor, error) {
	var claims actorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Actor{}, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Actor{}, ErrInvalidToken
		}
		return domain.Actor{}, err
	}

	return domain.Actor{UserID: user.ID, Role: user.Role}, nil
}
