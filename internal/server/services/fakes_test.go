package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// --- in-memory users repository ---

type memUsers struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]*models.User
	hashes map[string]string

	getErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}, hashes: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return nil, common.ErrEmailAlreadyRegistered
		}
	}
	m.seq++
	u.ID = fmt.Sprintf("u-%d", m.seq)
	if u.Role == "" {
		u.Role = common.RoleUser
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (m *memUsers) SetVerificationTokenHash(_ context.Context, userID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[userID]
	if !ok || u.IsVerified {
		return common.ErrAlreadyVerified
	}
	m.hashes[userID] = tokenHash
	return nil
}

func (m *memUsers) VerifyByTokenHash(_ context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, h := range m.hashes {
		if h == tokenHash && !m.byID[id].IsVerified {
			m.byID[id].IsVerified = true
			delete(m.hashes, id)
			return id, nil
		}
	}
	return "", common.ErrInvalidToken
}

func (m *memUsers) SetAvatarURL(_ context.Context, userID, url string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	u.AvatarURL = &url
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetRole(_ context.Context, email, role string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.Email == email {
			u.Role = role
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (m *memUsers) pendingHash(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[userID]
	return h, ok
}

// --- in-memory contacts repository ---

type memContacts struct {
	mu    sync.Mutex
	seq   int
	items map[string]*models.Contact
	order map[string]int
}

func newMemContacts() *memContacts {
	return &memContacts{items: map[string]*models.Contact{}, order: map[string]int{}}
}

func (m *memContacts) Create(_ context.Context, c *models.Contact) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.Email == c.Email {
			return nil, fmt.Errorf("contact email %w", common.ErrorConflict)
		}
	}
	m.seq++
	c.ID = fmt.Sprintf("c-%d", m.seq)
	c.CreatedAt = time.Now()
	cp := *c
	m.items[c.ID] = &cp
	m.order[c.ID] = m.seq
	return c, nil
}

func (m *memContacts) GetByID(_ context.Context, id string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memContacts) Update(_ context.Context, c *models.Contact) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.items[c.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for id, other := range m.items {
		if id != c.ID && other.Email == c.Email {
			return nil, fmt.Errorf("contact email %w", common.ErrorConflict)
		}
	}
	owner := existing.OwnerID
	*existing = *c
	existing.OwnerID = owner
	cp := *existing
	return &cp, nil
}

func (m *memContacts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memContacts) owned(ownerID string, keep func(*models.Contact) bool) []models.Contact {
	out := make([]models.Contact, 0)
	for _, c := range m.items {
		if c.OwnerID == ownerID && keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out
}

func (m *memContacts) List(_ context.Context, ownerID string, skip, limit int) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.owned(ownerID, func(*models.Contact) bool { return true })
	if skip >= len(all) {
		return []models.Contact{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (m *memContacts) Search(_ context.Context, ownerID, query string) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	return m.owned(ownerID, func(c *models.Contact) bool {
		return strings.Contains(strings.ToLower(c.FirstName), q) ||
			strings.Contains(strings.ToLower(c.LastName), q) ||
			strings.Contains(strings.ToLower(c.Email), q)
	}), nil
}

func (m *memContacts) ListByBirthdayDays(_ context.Context, ownerID string, days []string) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return m.owned(ownerID, func(c *models.Contact) bool {
		_, ok := set[c.Birthday.Format("01-02")]
		return ok
	}), nil
}

// --- repository manager ---

type fakeRepoManager struct {
	u *memUsers
	c *memContacts
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newMemUsers(), c: newMemContacts()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Contacts(dbx.DBTX) contacts.Repository        { return m.c }

// --- collaborators ---

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(to, subject, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
}

func (f *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no mail sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAvatarStore struct {
	calls int
	url   string
	err   error
}

func (f *fakeAvatarStore) Upload(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}
