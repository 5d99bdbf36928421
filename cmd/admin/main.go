// Command admin manages administrator accounts directly in the database.
//
//	admin create-admin [email] [-d dsn]
//	admin promote <email> [-d dsn]
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/contactkeeper/internal/admin"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, admin.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	tokens := auth.NewTokenService(cfg.SecretKey, cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	// Admin commands neither send mail nor upload avatars.
	us := services.NewUserService(db, rm, cfg, tokens, nil, nil, logger)

	cli := admin.NewCLI(us, os.Stdin, os.Stdout, int(os.Stdin.Fd()))
	return cli.Run(ctx, commandArgs(os.Args[1:]))
}

// commandArgs returns the leading arguments up to the first flag.
func commandArgs(args []string) []string {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			return args[:i]
		}
	}
	return args
}
