package contacts

import (
	"context"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

// Repository persists contacts. A duplicate email on Create or Update yields
// common.ErrorConflict; a missing row yields common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, c *models.Contact) (*models.Contact, error)
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	Update(ctx context.Context, c *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, skip, limit int) ([]models.Contact, error)
	// Search matches query as a case-insensitive substring of first name,
	// last name or email.
	Search(ctx context.Context, ownerID, query string) ([]models.Contact, error)
	// ListByBirthdayDays returns contacts whose birthday month and day,
	// formatted "MM-DD", is one of days.
	ListByBirthdayDays(ctx context.Context, ownerID string, days []string) ([]models.Contact, error)
}
