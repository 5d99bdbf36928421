package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

const (
	aliceToken = "alice-access"
	bobToken   = "bob-access"
)

type fakeUsers struct {
	byToken map[string]*models.User
	emails  map[string]bool

	loginErr  error
	resendErr error
	verifyErr error
	avatarErr error

	gotAvatar     []byte
	gotAvatarType string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byToken: map[string]*models.User{
			aliceToken: {ID: "u-alice", Email: "alice@example.com", Role: common.RoleUser, IsVerified: true},
			bobToken:   {ID: "u-bob", Email: "bob@example.com", Role: common.RoleUser},
		},
		emails: map[string]bool{"alice@example.com": true, "bob@example.com": true},
	}
}

func (f *fakeUsers) Register(_ context.Context, email, _ string) (*models.User, error) {
	if f.emails[email] {
		return nil, common.ErrEmailAlreadyRegistered
	}
	f.emails[email] = true
	return &models.User{ID: "u-new", Email: email, Role: common.RoleUser, CreatedAt: time.Unix(0, 0).UTC()}, nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if !f.emails[email] || password != "password123" {
		return nil, common.ErrorUnauthorized
	}
	return &services.TokenPair{AccessToken: "access-" + email, RefreshToken: "refresh-" + email}, nil
}

func (f *fakeUsers) RequestVerificationEmail(context.Context, string) error { return f.resendErr }

func (f *fakeUsers) VerifyEmail(_ context.Context, token string) error {
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if token != "good-token" {
		return common.ErrInvalidOrAlreadyVerified
	}
	return nil
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (*models.User, error) {
	u, ok := f.byToken[token]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return u, nil
}

func (f *fakeUsers) Me(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.byToken {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeUsers) UploadAvatar(_ context.Context, id string, data []byte, contentType string) (*models.User, error) {
	f.gotAvatar, f.gotAvatarType = data, contentType
	if len(data) > services.MaxAvatarSize {
		return nil, common.ErrFileTooLarge
	}
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, common.ErrUnsupportedFileType
	}
	if f.avatarErr != nil {
		return nil, f.avatarErr
	}
	u, err := f.Me(context.Background(), id)
	if err != nil {
		return nil, err
	}
	url := "https://cdn.example/" + id + ".png"
	u.AvatarURL = &url
	return u, nil
}

// fakeContacts is an owner-only in-memory store.
type fakeContacts struct {
	items  []*models.Contact
	nextID int

	gotSkip, gotLimit int
	gotQuery          string
	err               error
}

func (f *fakeContacts) Create(_ context.Context, s auth.Subject, c models.Contact) (*models.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, it := range f.items {
		if it.Email == c.Email {
			return nil, fmt.Errorf("contact email: %w", common.ErrorConflict)
		}
	}
	f.nextID++
	c.ID = fmt.Sprintf("c-%d", f.nextID)
	c.OwnerID = s.ID
	f.items = append(f.items, &c)
	return &c, nil
}

func (f *fakeContacts) find(s auth.Subject, id string) (*models.Contact, int, error) {
	for i, it := range f.items {
		if it.ID == id && auth.Allowed(auth.ActionRead, s, it.OwnerID, false) {
			return it, i, nil
		}
	}
	return nil, -1, common.ErrorNotFound
}

func (f *fakeContacts) Get(_ context.Context, s auth.Subject, id string) (*models.Contact, error) {
	c, _, err := f.find(s, id)
	return c, err
}

func (f *fakeContacts) Update(_ context.Context, s auth.Subject, id string, p models.ContactPatch) (*models.Contact, error) {
	c, _, err := f.find(s, id)
	if err != nil {
		return nil, err
	}
	p.Apply(c)
	return c, nil
}

func (f *fakeContacts) Delete(_ context.Context, s auth.Subject, id string) (*models.Contact, error) {
	c, i, err := f.find(s, id)
	if err != nil {
		return nil, err
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return c, nil
}

func (f *fakeContacts) owned(s auth.Subject) []models.Contact {
	out := []models.Contact{}
	for _, it := range f.items {
		if it.OwnerID == s.ID {
			out = append(out, *it)
		}
	}
	return out
}

func (f *fakeContacts) List(_ context.Context, s auth.Subject, skip, limit int) ([]models.Contact, error) {
	f.gotSkip, f.gotLimit = skip, limit
	if skip < 0 || limit < 0 {
		return nil, common.ErrorInvalidInput
	}
	return f.owned(s), nil
}

func (f *fakeContacts) Search(_ context.Context, s auth.Subject, q string) ([]models.Contact, error) {
	f.gotQuery = q
	out := []models.Contact{}
	for _, c := range f.owned(s) {
		if strings.Contains(strings.ToLower(c.FirstName), strings.ToLower(q)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) UpcomingBirthdays(_ context.Context, s auth.Subject) ([]models.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.owned(s), nil
}

type testAPI struct {
	handler  http.Handler
	users    *fakeUsers
	contacts *fakeContacts
}

func newTestAPI(t *testing.T, limiter Limiter) *testAPI {
	t.Helper()
	api := &testAPI{users: newFakeUsers(), contacts: &fakeContacts{}}
	api.handler = NewRouter(Options{
		Users:              api.users,
		Contacts:           api.contacts,
		Limiter:            limiter,
		RateLimitPerMinute: 10,
		AllowedOrigins:     []string{"*"},
		Logger:             logging.Nop(),
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}
