package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/users"
)

// verificationTokenBytes is the entropy of a verification token (256 bits).
const verificationTokenBytes = 32

// newVerificationToken is a seam for tests.
var newVerificationToken = func() (string, error) {
	return common.MakeRandURLString(verificationTokenBytes)
}

// VerificationManager issues and redeems one-time email verification tokens.
// Only the SHA-256 digest of a token is stored; issuing a new token replaces
// the previous one.
type VerificationManager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewVerificationManager(db *sql.DB, m repomanager.RepositoryManager) *VerificationManager {
	return &VerificationManager{db: db, repomanager: m}
}

// Issue creates a fresh token for the user with the given email.
// It fails with common.ErrUserNotFound or common.ErrAlreadyVerified.
func (v *VerificationManager) Issue(ctx context.Context, email string) (string, error) {
	repo := v.repomanager.Users(v.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return v.issueFor(ctx, repo, user)
}

func (v *VerificationManager) issueFor(ctx context.Context, repo users.Repository, user *models.User) (string, error) {
	if user.IsVerified {
		return "", common.ErrAlreadyVerified
	}

	token, err := newVerificationToken()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}

	if err := repo.SetVerificationTokenHash(ctx, user.ID, common.HashToken(token)); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem marks the owner of token verified and returns their ID. Unknown,
// replaced and already redeemed tokens yield common.ErrInvalidToken.
func (v *VerificationManager) Redeem(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrInvalidToken
	}

	id, err := v.repomanager.Users(v.db).VerifyByTokenHash(ctx, common.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return "", common.ErrInvalidToken
		}
		return "", err
	}
	return id, nil
}
