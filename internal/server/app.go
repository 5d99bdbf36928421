// Package server wires the contactkeeper components together: configuration,
// storage, token and mail services, and the HTTP and gRPC health servers.
// It handles graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/blob"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactkeeper/internal/server/rest"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/contactkeeper/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	dispatcher *mailer.Dispatcher
	redis      *redis.Client
	httpServer *rest.Server
	health     *gs.HealthServer
}

// openDB is a seam for tests.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newBlobStore is a seam for tests.
var newBlobStore = blob.New

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	dispatcher := mailer.NewDispatcher(mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	}), c.MailWorkers, c.MailQueueSize, logger)

	limiter, rdb, err := newLimiter(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rate limiter init error: %w", err)
	}

	tokens := auth.NewTokenService(c.SecretKey, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	us := services.NewUserService(db, rm, c, tokens, dispatcher, store, logger)
	cs := services.NewContactService(db, rm, auth.NewPolicy(c.AdminContactAccess))

	router := rest.NewRouter(rest.Options{
		Users:              us,
		Contacts:           cs,
		Limiter:            limiter,
		RateLimitPerMinute: c.RateLimitPerMinute,
		AllowedOrigins:     c.AllowedOrigins,
		Metrics:            rest.NewMetrics(),
		Logger:             logger,
	})

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		redis:      rdb,
		httpServer: rest.NewServer(c.HTTPAddr, router, logger),
		health:     gs.NewHealthServer(c.GRPCAddr, logger),
	}, nil
}

// newLimiter picks the rate limiter: nil when disabled, Redis with an
// in-process fallback when REDIS_URL is set, in-process otherwise.
func newLimiter(c *config.Config, logger logging.Logger) (rest.Limiter, *redis.Client, error) {
	if c.RateLimitPerMinute <= 0 {
		return nil, nil, nil
	}
	mem := rest.NewMemoryLimiter(c.RateLimitPerMinute, time.Minute)
	if c.RedisURL == "" {
		return mem, nil, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	primary := rest.NewRedisLimiter(rdb, c.RateLimitPerMinute, time.Minute)
	return rest.NewFallbackLimiter(primary, mem, logger), rdb, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or a server fails, then shuts down.
// Queued verification emails are delivered before Run returns.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	// Mail delivery outlives ctx so the queue can drain after shutdown starts.
	app.dispatcher.Start(context.WithoutCancel(ctx))

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	app.dispatcher.Close()
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
}
