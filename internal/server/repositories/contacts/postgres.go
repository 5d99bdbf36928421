// Package contacts provides the PostgreSQL-backed contact repository.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const emailConstraint = "contacts_email_key"

const contactColumns = `id, first_name, last_name, email, phone_number, birthday, additional_data, owner_id, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	query := `INSERT INTO contacts (first_name, last_name, email, phone_number, birthday, additional_data, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + contactColumns

	return r.getOne(ctx, query,
		c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Birthday, c.AdditionalData, c.OwnerID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// Update writes every mutable field of c. OwnerID is never changed.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	query := `UPDATE contacts SET first_name = $2, last_name = $3, email = $4, phone_number = $5,
		birthday = $6, additional_data = $7
		WHERE id = $1
		RETURNING ` + contactColumns

	return r.getOne(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Birthday, c.AdditionalData)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidText(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, skip, limit int) ([]models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE owner_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	return r.getMany(ctx, query, ownerID, limit, skip)
}

func (r *PostgresRepository) Search(ctx context.Context, ownerID, query string) ([]models.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts
		WHERE owner_id = $1
		  AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)
		ORDER BY created_at, id`

	return r.getMany(ctx, q, ownerID, "%"+escapeLike(query)+"%")
}

func (r *PostgresRepository) ListByBirthdayDays(ctx context.Context, ownerID string, days []string) ([]models.Contact, error) {
	if len(days) == 0 {
		return []models.Contact{}, nil
	}

	args := make([]any, 0, len(days)+1)
	args = append(args, ownerID)
	placeholders := make([]string, 0, len(days))
	for _, d := range days {
		args = append(args, d)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE owner_id = $1
		  AND to_char(birthday, 'MM-DD') IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY created_at, id`

	return r.getMany(ctx, query, args...)
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*models.Contact, error) {
	c := &models.Contact{}
	var extra sql.NullString

	if err := s.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.Birthday, &extra, &c.OwnerID, &c.CreatedAt,
	); err != nil {
		return nil, err
	}

	if extra.Valid {
		c.AdditionalData = &extra.String
	}
	return c, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), dbx.IsInvalidText(err):
			return nil, common.ErrorNotFound
		case dbx.IsUniqueViolation(err, emailConstraint):
			return nil, fmt.Errorf("contact email %w", common.ErrorConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) getMany(ctx context.Context, query string, args ...any) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
