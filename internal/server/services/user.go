package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

const (
	// MaxAvatarSize is the largest accepted avatar upload (1 MiB).
	MaxAvatarSize = 1 << 20

	verificationSubject = "Confirm your email address"
)

var allowedAvatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// UserService handles registration, login, email verification and avatars.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	hasher        *auth.Hasher
	tokens        *auth.TokenService
	verification  *VerificationManager
	mail          EmailSender
	avatars       AvatarStore
	verifyBaseURL string
	logger        logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	cfg *config.Config,
	tokens *auth.TokenService,
	mail EmailSender,
	avatars AvatarStore,
	l logging.Logger,
) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		hasher:        auth.NewHasher(cfg.BcryptCost),
		tokens:        tokens,
		verification:  NewVerificationManager(db, m),
		mail:          mail,
		avatars:       avatars,
		verifyBaseURL: strings.TrimRight(cfg.VerifyBaseURL, "/"),
		logger:        l.With("module", "user_service"),
	}
}

// Register creates an unverified user, stores a verification token for it in
// the same transaction and queues the verification email. A taken email
// yields common.ErrEmailAlreadyRegistered.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	digest, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		user  *models.User
		token string
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		created, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: digest, Role: common.RoleUser})
		if err != nil {
			return err
		}
		user = created

		token, err = s.verification.issueFor(ctx, repo, created)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user.Email, token)
	return user, nil
}

// Login checks credentials and mints a token pair. Unknown email and wrong
// password both yield common.ErrorUnauthorized after a bcrypt comparison.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CheckPassword(password, s.dummyDigest())
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if !s.hasher.CheckPassword(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	return s.issueTokenPair(user.ID)
}

// RequestVerificationEmail issues a new token for email and queues the link.
func (s *UserService) RequestVerificationEmail(ctx context.Context, email string) error {
	token, err := s.verification.Issue(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrAlreadyVerified) {
			return common.ErrInvalidOrAlreadyVerified
		}
		return err
	}

	s.sendVerification(ctx, email, token)
	return nil
}

// VerifyEmail redeems token.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	if _, err := s.verification.Redeem(ctx, token); err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return common.ErrInvalidOrAlreadyVerified
		}
		return err
	}
	return nil
}

// Authenticate resolves an access token to the user it was issued for.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UploadAvatar validates size and type, uploads data and stores the URL on
// the user. Validation happens before any network call.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (*models.User, error) {
	if len(data) > MaxAvatarSize {
		return nil, common.ErrFileTooLarge
	}
	if _, ok := allowedAvatarTypes[contentType]; !ok {
		return nil, common.ErrUnsupportedFileType
	}

	url, err := s.avatars.Upload(ctx, userID, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w: %w", common.ErrorUpstream, err)
	}

	return s.repomanager.Users(s.db).SetAvatarURL(ctx, userID, url)
}

// CreateAdmin registers a verified administrator directly.
func (s *UserService) CreateAdmin(ctx context.Context, email, password string) (*models.User, error) {
	digest, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		created, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: digest, Role: common.RoleAdmin})
		if err != nil {
			return err
		}
		token, err := s.verification.issueFor(ctx, repo, created)
		if err != nil {
			return err
		}
		if _, err := repo.VerifyByTokenHash(ctx, common.HashToken(token)); err != nil {
			return err
		}
		created.IsVerified = true
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// PromoteToAdmin grants the admin role to an existing user.
func (s *UserService) PromoteToAdmin(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).SetRole(ctx, email, common.RoleAdmin)
}

func (s *UserService) issueTokenPair(userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	refresh, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) sendVerification(ctx context.Context, email, token string) {
	link := s.verifyBaseURL + "/users/verify/" + token
	body := "To confirm your email address, please follow this link: " + link

	s.mail.Send(email, verificationSubject, body)
	s.logger.Debug(ctx, "verification email queued", "email", email)
}

// dummyDigest is compared against when the user does not exist so that the
// response time matches a real password check.
func (s *UserService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		token, err := common.MakeRandURLString(16)
		if err != nil {
			token = "contactkeeper"
		}
		s.dummyHash, _ = s.hasher.HashPassword(token)
	})
	return s.dummyHash
}
