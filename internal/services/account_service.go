package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	pkgauth "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/auth"
)

// AccountStore is the slice of the user repository that account creation needs
type AccountStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// AccountService handles account registration
type AccountService struct {
	store  AccountStore
	logger *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store AccountStore, logger *slog.Logger) *AccountService {
	return &AccountService{store: store, logger: logger}
}

// Register creates a new account with a bcrypt password hash. Two-factor
// starts disabled; users opt in after first login.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.store.Create(ctx, &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Name:         name,
		Role:         "user",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created", slog.String("user_id", user.ID))
	return user, nil
}
