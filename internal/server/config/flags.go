package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/flagx"
)

// parseFlags applies the short command-line flags. Other arguments (including
// -c and -env-file) are filtered out first so they never trip the parser.
//
//	-a string   HTTP bind address
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-u string   public base URL for verification links
//	-b string   blob backend (cloudinary | s3)
//	-R string   Redis URL for the rate limiter
//	-l int      requests per minute per client
//	-A bool     allow admins to access any contact
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{
		"-a", "-g", "-d", "-s", "-t", "-r", "-u", "-b", "-R", "-l", "-A",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "address and port to run the HTTP server")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address and port to run the gRPC health server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")

	access := fs.Int("t", int(cfg.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refresh := fs.Int("r", int(cfg.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&cfg.VerifyBaseURL, "u", cfg.VerifyBaseURL, "public base URL for verification links")
	fs.StringVar(&cfg.BlobBackend, "b", cfg.BlobBackend, "blob backend: cloudinary or s3")
	fs.StringVar(&cfg.RedisURL, "R", cfg.RedisURL, "redis URL for rate limiting")
	fs.IntVar(&cfg.RateLimitPerMinute, "l", cfg.RateLimitPerMinute, "requests per minute per client")
	fs.BoolVar(&cfg.AdminContactAccess, "A", cfg.AdminContactAccess, "allow admins to access any contact")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg.AccessTokenValidityDuration = time.Duration(*access) * time.Minute
	cfg.RefreshTokenValidityDuration = time.Duration(*refresh) * time.Minute
	return nil
}
