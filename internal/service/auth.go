package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"weapon-shop/internal/db"
	"weapon-shop/pkg"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

type authService struct {
	authDB    db.AuthDB
	log       pkg.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(authDB db.AuthDB, logger pkg.Logger, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		authDB:    authDB,
		log:       logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Authenticate issues a token for username, registering the principal on
// first login.
func (s *authService) Authenticate(ctx context.Context, username, password string) (string, error) {
	if s.jwtSecret == "" {
		s.log.Error("auth: empty JWT secret key")
		return "", errors.New("could not generate token: empty secret key")
	}
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username or password", ErrInvalidCredentials)
	}

	id, passHash, err := s.authDB.GetUserAuthData(ctx, username)
	switch {
	case errors.Is(err, db.ErrNotFound):
		id, err = s.register(ctx, username, password)
		if err != nil {
			return "", err
		}
	case err != nil:
		s.log.Warn("invalid credentials", zap.String("username", username), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(passHash), []byte(password)); err != nil {
			s.log.Warn("invalid credentials: password mismatch", zap.String("username", username))
			return "", fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  id,
		"username": username,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.log.Error("failed to generate token", zap.String("username", username), zap.Error(err))
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	s.log.Info("User authenticated", zap.Int("userID", id), zap.String("username", username))
	return tokenString, nil
}

func (s *authService) register(ctx context.Context, username, password string) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}
	id, err := s.authDB.CreateUser(ctx, username, string(hash))
	if errors.Is(err, db.ErrAlreadyExists) {
		// lost a race with a concurrent first login
		s.log.Warn("invalid credentials: concurrent registration", zap.String("username", username))
		return 0, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if err != nil {
		s.log.Error("failed to register user", zap.String("username", username), zap.Error(err))
		return 0, err
	}
	s.log.Info("User registered", zap.Int("userID", id), zap.String("username", username))
	return id, nil
}
