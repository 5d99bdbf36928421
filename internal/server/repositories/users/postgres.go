// Package users provides the PostgreSQL-backed user repository.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const emailConstraint = "users_email_key"

const userColumns = `id, email, password_hash, role, avatar_url, is_verified, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'user'))
		RETURNING id, role, created_at`

	err := r.db.QueryRowContext(ctx, query, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.Role, &user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return nil, common.ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) SetVerificationTokenHash(ctx context.Context, userID, tokenHash string) error {
	query := `UPDATE users SET verification_token_hash = $2
		WHERE id = $1 AND NOT is_verified`

	res, err := r.db.ExecContext(ctx, query, userID, tokenHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyVerified
	}
	return nil
}

func (r *PostgresRepository) VerifyByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	query := `UPDATE users SET is_verified = TRUE, verification_token_hash = NULL
		WHERE verification_token_hash = $1 AND NOT is_verified
		RETURNING id`

	var id string
	if err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrInvalidToken
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) SetAvatarURL(ctx context.Context, userID, url string) (*models.User, error) {
	query := `UPDATE users SET avatar_url = $2 WHERE id = $1 RETURNING ` + userColumns
	return r.getOne(ctx, query, userID, url)
}

func (r *PostgresRepository) SetRole(ctx context.Context, email, role string) (*models.User, error) {
	query := `UPDATE users SET role = $2 WHERE email = $1 RETURNING ` + userColumns
	return r.getOne(ctx, query, email, role)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	var avatar sql.NullString

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &avatar, &user.IsVerified, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if avatar.Valid {
		user.AvatarURL = &avatar.String
	}
	return user, nil
}
