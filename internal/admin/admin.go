// Package admin implements the operator commands that manage administrator
// accounts. The HTTP API never grants the admin role.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const minPasswordLength = 8

const usage = `usage:
  admin create-admin [email]   create a verified administrator
  admin promote <email>        grant the admin role to an existing user`

var ErrUsage = errors.New(usage)

type UserAdmin interface {
	CreateAdmin(ctx context.Context, email, password string) (*models.User, error)
	PromoteToAdmin(ctx context.Context, email string) (*models.User, error)
}

type CLI struct {
	users UserAdmin
	in    *bufio.Reader
	out   io.Writer
	ttyFD int
}

// NewCLI reads prompts from in and passwords from the terminal ttyFD.
func NewCLI(users UserAdmin, in io.Reader, out io.Writer, ttyFD int) *CLI {
	return &CLI{users: users, in: bufio.NewReader(in), out: out, ttyFD: ttyFD}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "create-admin":
		return c.createAdmin(ctx, args[1:])
	case "promote":
		if len(args) != 2 {
			return ErrUsage
		}
		return c.promote(ctx, args[1])
	default:
		return ErrUsage
	}
}

func (c *CLI) createAdmin(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = GetSimpleText(c.in, "Enter admin email", c.out); err != nil {
			return err
		}
	}
	if email == "" {
		return fmt.Errorf("email is required: %w", common.ErrorInvalidInput)
	}

	password, err := GetPassword(c.ttyFD, "Enter password", c.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword(c.ttyFD, "Repeat password", c.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return fmt.Errorf("passwords do not match: %w", common.ErrorInvalidInput)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrorInvalidInput)
	}

	u, err := c.users.CreateAdmin(ctx, email, string(password))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created admin %s (id=%s)\n", u.Email, u.ID)
	return nil
}

func (c *CLI) promote(ctx context.Context, email string) error {
	u, err := c.users.PromoteToAdmin(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Promoted %s to %s\n", u.Email, u.Role)
	return nil
}
