package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

// BirthdayWindowDays is the length of the upcoming-birthdays window.
const BirthdayWindowDays = 7

// ContactService implements owner-scoped contact management. Contacts the
// caller may not access are reported as common.ErrorNotFound.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      auth.Policy
	now         func() time.Time
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager, policy auth.Policy) *ContactService {
	return &ContactService{db: db, repomanager: m, policy: policy, now: time.Now}
}

// Create stores c owned by subject. A duplicate email yields common.ErrorConflict.
func (s *ContactService) Create(ctx context.Context, subject auth.Subject, c models.Contact) (*models.Contact, error) {
	c.ID = ""
	c.OwnerID = subject.ID
	return s.repomanager.Contacts(s.db).Create(ctx, &c)
}

func (s *ContactService) Get(ctx context.Context, subject auth.Subject, id string) (*models.Contact, error) {
	c, err := s.repomanager.Contacts(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allowed(auth.ActionRead, subject, c.OwnerID) {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

// Update applies patch to the contact. The owner never changes.
func (s *ContactService) Update(ctx context.Context, subject auth.Subject, id string, patch models.ContactPatch) (*models.Contact, error) {
	var updated *models.Contact

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Contacts(tx)

		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !s.policy.Allowed(auth.ActionUpdate, subject, c.OwnerID) {
			return common.ErrorNotFound
		}
		if patch.Empty() {
			updated = c
			return nil
		}

		patch.Apply(c)
		updated, err = repo.Update(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the contact and returns it as it was.
func (s *ContactService) Delete(ctx context.Context, subject auth.Subject, id string) (*models.Contact, error) {
	var deleted *models.Contact

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Contacts(tx)

		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !s.policy.Allowed(auth.ActionDelete, subject, c.OwnerID) {
			return common.ErrorNotFound
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		deleted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// List pages through the caller's own contacts in creation order.
func (s *ContactService) List(ctx context.Context, subject auth.Subject, skip, limit int) ([]models.Contact, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("skip and limit must not be negative: %w", common.ErrorInvalidInput)
	}
	if limit == 0 {
		return []models.Contact{}, nil
	}
	return s.repomanager.Contacts(s.db).List(ctx, subject.ID, skip, limit)
}

// Search returns the caller's contacts whose first name, last name or email
// contains query, ignoring case.
func (s *ContactService) Search(ctx context.Context, subject auth.Subject, query string) ([]models.Contact, error) {
	return s.repomanager.Contacts(s.db).Search(ctx, subject.ID, query)
}

// UpcomingBirthdays returns the caller's contacts whose birthday falls within
// the next BirthdayWindowDays days, today included, regardless of birth year.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, subject auth.Subject) ([]models.Contact, error) {
	days := BirthdayWindow(s.now(), BirthdayWindowDays)
	return s.repomanager.Contacts(s.db).ListByBirthdayDays(ctx, subject.ID, days)
}

// BirthdayWindow lists the "MM-DD" days in [today, today+n). On Feb 28 of a
// non-leap year "02-29" is added as well, so leap-day birthdays are not
// skipped.
func BirthdayWindow(today time.Time, n int) []string {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	days := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		days = append(days, d.Format("01-02"))
		if d.Month() == time.February && d.Day() == 28 && !isLeap(d.Year()) {
			days = append(days, "02-29")
		}
	}
	return days
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
