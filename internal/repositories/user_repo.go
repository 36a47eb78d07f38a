package repositories

import (
	"context"
	"fmt"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/database"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, email, password_hash, name, role,
	two_factor_secret, two_factor_enabled, two_factor_verified, two_factor_method, backup_codes,
	created_at, updated_at`

// scanUserRow populates a User model from a database row. backup_codes is
// read verbatim; interpretation is left to the backup-code parser.
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
		&user.TwoFactorSecret, &user.TwoFactorEnabled, &user.TwoFactorVerified,
		&user.TwoFactorMethod, &user.BackupCodesRaw,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	return scanUserRow(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	row := r.pool.QueryRow(ctx, query, email)
	return scanUserRow(row)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role)
	created, err := scanUserRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// UpdateTwoFactor overwrites the user's two-factor credential as one unit.
// The zero-value update clears everything, which is how disable works.
func (r *UserRepository) UpdateTwoFactor(ctx context.Context, userID string, update models.TwoFactorUpdate) error {
	query := `
		UPDATE users
		SET two_factor_secret = $2,
			two_factor_enabled = $3,
			two_factor_verified = $4,
			two_factor_method = $5,
			backup_codes = $6,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID,
		update.Secret, update.Enabled, update.Verified, update.Method, update.BackupCodesRaw)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
