package users

import (
	"context"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in ID, Role and CreatedAt. A taken email
	// yields common.ErrEmailAlreadyRegistered.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// SetVerificationTokenHash replaces the pending token digest of an
	// unverified user. It returns common.ErrAlreadyVerified when the user has
	// been verified in the meantime.
	SetVerificationTokenHash(ctx context.Context, userID, tokenHash string) error
	// VerifyByTokenHash atomically marks the owner of tokenHash verified and
	// clears the digest. No match yields common.ErrInvalidToken.
	VerifyByTokenHash(ctx context.Context, tokenHash string) (string, error)
	SetAvatarURL(ctx context.Context, userID, url string) (*models.User, error)
	SetRole(ctx context.Context, email, role string) (*models.User, error)
}
