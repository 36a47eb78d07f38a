package services

import (
	"context"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
)

// UserStore is the user-persistence collaborator consumed by the login and
// two-factor flows. The wider exchange owns the full user schema; this core
// only reads accounts and writes back two-factor credential fields.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateTwoFactor(ctx context.Context, userID string, update models.TwoFactorUpdate) error
}
