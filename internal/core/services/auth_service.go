package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// AuthService authenticates operator accounts. Accounts are provisioned out
// of band by an administrator; this service only verifies credentials.
type AuthService struct {
	operatorRepo ports.OperatorRepository
	logger       *slog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService creates a new auth service.
func NewAuthService(operatorRepo ports.OperatorRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		logger:       logger.With("component", "auth_service"),
	}
}

// Login verifies the email/password pair and returns the operator. A
// missing account and a bad password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Operator, error) {
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	op, err := s.operatorRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrOperatorNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login failed", "email", email)
		return nil, apperrors.ErrInvalidCredentials
	}

	return op, nil
}

// HashPassword produces a bcrypt hash for operator provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
