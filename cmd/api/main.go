package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/registration-service/internal/api/http"
	"github.com/spec-kit/registration-service/internal/api/http/handlers"
	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/config"
	"github.com/spec-kit/registration-service/internal/events"
	"github.com/spec-kit/registration-service/internal/i18n"
	"github.com/spec-kit/registration-service/internal/mail"
	"github.com/spec-kit/registration-service/internal/observability"
	"github.com/spec-kit/registration-service/internal/persistence"
	"github.com/spec-kit/registration-service/internal/repository"
	"github.com/spec-kit/registration-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}

	var accounts repository.AccountRepository
	if pool := pg.PoolHandle(); pool != nil {
		accounts = repository.NewAccountRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory account store; accounts are lost on restart")
		accounts = repository.NewMemoryAccountRepository()
	}

	var locker service.EmailLocker
	if cfg.Redis.LockEnabled {
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		if err != nil {
			logger.Warn("registration lock disabled", zap.Error(err))
		} else {
			locker = persistence.NewEmailLock(rdb.Client, cfg.Redis.LockTTL(), logger)
			readiness["redis"] = rdb
		}
	}

	var mailer service.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail, logger)
	} else {
		logger.Warn("MAIL_HOST not set; activation emails are logged, not sent")
		mailer = mail.NewLogMailer(cfg.Mail.ActivationURL, logger)
	}

	translator, err := i18n.New()
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger.Named("audit")).RegisterHandlers()

	registration := service.NewRegistrationService(service.RegistrationDependencies{
		Accounts:    accounts,
		Mailer:      mailer,
		Hasher:      auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:      auth.NewTokenGenerator(cfg.Auth.ActivationTokenLength),
		Locker:      locker,
		Dispatcher:  dispatcher,
		Logger:      logger,
		MailTimeout: cfg.Mail.SendTimeout(),
	})

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:     logger,
		Metrics:    metrics,
		Translator: translator,
		Timeout:    cfg.App.RequestTimeout(),
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness).WithMetrics(metrics),
		Accounts: handlers.NewAccountsHandler(registration, translator),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
