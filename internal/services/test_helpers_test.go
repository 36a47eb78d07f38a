package services

import (
	"context"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
)

// mockUserStore implements UserStore with overridable behavior per test
type mockUserStore struct {
	GetByEmailFunc      func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc         func(ctx context.Context, id string) (*models.User, error)
	UpdateTwoFactorFunc func(ctx context.Context, userID string, update models.TwoFactorUpdate) error

	updates []models.TwoFactorUpdate
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByEmailFunc(ctx, email)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserStore) UpdateTwoFactor(ctx context.Context, userID string, update models.TwoFactorUpdate) error {
	m.updates = append(m.updates, update)
	if m.UpdateTwoFactorFunc == nil {
		return nil
	}
	return m.UpdateTwoFactorFunc(ctx, userID, update)
}

func (m *mockUserStore) lastUpdate() *models.TwoFactorUpdate {
	if len(m.updates) == 0 {
		return nil
	}
	return &m.updates[len(m.updates)-1]
}
