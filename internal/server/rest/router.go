// Package rest exposes the contact and user services over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

// UserService is the subset of services.UserService the handlers need.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RequestVerificationEmail(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) error
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (*models.User, error)
}

// ContactService is the subset of services.ContactService the handlers need.
type ContactService interface {
	Create(ctx context.Context, subject auth.Subject, c models.Contact) (*models.Contact, error)
	Get(ctx context.Context, subject auth.Subject, id string) (*models.Contact, error)
	Update(ctx context.Context, subject auth.Subject, id string, patch models.ContactPatch) (*models.Contact, error)
	Delete(ctx context.Context, subject auth.Subject, id string) (*models.Contact, error)
	List(ctx context.Context, subject auth.Subject, skip, limit int) ([]models.Contact, error)
	Search(ctx context.Context, subject auth.Subject, query string) ([]models.Contact, error)
	UpcomingBirthdays(ctx context.Context, subject auth.Subject) ([]models.Contact, error)
}

type Options struct {
	Users    UserService
	Contacts ContactService
	// Limiter may be nil to disable rate limiting.
	Limiter            Limiter
	RateLimitPerMinute int
	AllowedOrigins     []string
	Metrics            *Metrics
	Logger             logging.Logger
}

type handlers struct {
	users          UserService
	contacts       ContactService
	limiter        Limiter
	limitPerMinute int
	limitWindow    time.Duration
	logger         logging.Logger
}

// NewRouter wires middleware and routes. /healthz and /metrics bypass the
// rate limiter.
func NewRouter(o Options) http.Handler {
	h := &handlers{
		users:          o.Users,
		contacts:       o.Contacts,
		limiter:        o.Limiter,
		limitPerMinute: o.RateLimitPerMinute,
		limitWindow:    time.Minute,
		logger:         o.Logger.With("module", "rest"),
	}
	metrics := o.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.rateLimit)
		}

		r.Post("/users/", h.register)
		r.Post("/users/send_verification_email/", h.sendVerificationEmail)
		r.Get("/users/verify/{token}", h.verifyEmail)
		r.Post("/token/", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)

			r.Get("/users/me", h.me)
			r.Post("/users/avatar", h.uploadAvatar)

			r.Route("/contacts", func(r chi.Router) {
				r.Post("/", h.createContact)
				r.Get("/", h.listContacts)
				r.Get("/search", h.searchContacts)
				r.Get("/birthdays", h.upcomingBirthdays)
				r.Get("/{id}", h.getContact)
				r.Put("/{id}", h.updateContact)
				r.Delete("/{id}", h.deleteContact)
			})
		})
	})

	return r
}
