package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/controllers"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/archive"
	"github.com/ManuelReschke/Payline/internal/pkg/billing"
	"github.com/ManuelReschke/Payline/internal/pkg/cache"
	"github.com/ManuelReschke/Payline/internal/pkg/config"
	"github.com/ManuelReschke/Payline/internal/pkg/constants"
	"github.com/ManuelReschke/Payline/internal/pkg/database"
	"github.com/ManuelReschke/Payline/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
	"github.com/ManuelReschke/Payline/internal/pkg/mail"
	"github.com/ManuelReschke/Payline/internal/pkg/ratelimit"
	"github.com/ManuelReschke/Payline/internal/pkg/router"
	"github.com/ManuelReschke/Payline/internal/pkg/webhooks"
)

// bodyLimit bounds request bodies; provider webhooks are the largest.
const bodyLimit = 1 << 20

// Application owns the fiber app and the connections behind it.
type Application struct {
	App   *fiber.App
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

// NewApplication connects the backing services and installs all routes.
func NewApplication(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*Application, error) {
	db, err := database.Open(cfg.Database, lg)
	if err != nil {
		return nil, err
	}
	if cfg.IsDev() {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	rdb := cache.New(ctx, cfg.Cache, lg)
	repos := repository.NewFactory(db).GetRepositories()

	// Identity
	keys := identity.NewKeyCache(cfg.Identity.JWKSURL, cfg.Identity.KeyCacheTTL)
	verifier := identity.NewVerifier(keys, identity.VerifierOptions{
		Issuer:            cfg.Identity.Issuer,
		AuthorizedParties: cfg.Identity.AuthorizedParties,
	})
	directory := identity.NewDirectory(repos.User, lg)
	var identityWebhooks *identity.WebhookVerifier
	if cfg.Identity.WebhookSecret != "" {
		identityWebhooks, err = identity.NewWebhookVerifier(cfg.Identity.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("identity webhook secret: %w", err)
		}
	} else {
		lg.Warn("IDENTITY_WEBHOOK_SECRET not set, identity webhooks are rejected")
	}

	// Billing
	billingSvc := billing.NewService(billing.NewStripeProvider(cfg.Stripe), repos, cfg.AppURL, lg)
	if cfg.Stripe.WebhookSecret == "" {
		lg.Warn("STRIPE_WEBHOOK_SECRET not set, payment webhooks are rejected")
	}

	// Webhook archive
	var arch archive.Archiver = archive.Noop{}
	if cfg.Archive.Enabled() {
		s3Archiver, err := archive.NewS3Archiver(ctx, cfg.Archive, lg)
		if err != nil {
			return nil, err
		}
		if err := s3Archiver.Ping(ctx); err != nil {
			lg.Warn("webhook archive bucket not reachable", zap.String("bucket", cfg.Archive.Bucket), zap.Error(err))
		}
		arch = s3Archiver
	}
	recorder := webhooks.NewRecorder(repos.WebhookEvent, arch, lg)

	// Abuse limits
	contactPolicy := ratelimit.Policy{Name: ratelimit.ContactPolicy.Name, Max: cfg.Limits.ContactMax, Window: cfg.Limits.ContactWindow}
	newsletterPolicy := ratelimit.Policy{Name: ratelimit.NewsletterPolicy.Name, Max: cfg.Limits.NewsletterMax, Window: cfg.Limits.NewsletterWindow}
	var (
		contactLimiter    ratelimit.Limiter
		newsletterLimiter ratelimit.Limiter
		limiterStorage    fiber.Storage
	)
	if err := rdb.Ping(ctx).Err(); err == nil {
		contactLimiter = ratelimit.NewRedisLimiter(rdb, contactPolicy)
		newsletterLimiter = ratelimit.NewRedisLimiter(rdb, newsletterPolicy)
		limiterStorage = cache.NewFiberStorage(rdb)
	} else {
		lg.Warn("redis unavailable, rate limits are per instance", zap.Error(err))
		contactLimiter = ratelimit.NewMemoryLimiter(contactPolicy)
		newsletterLimiter = ratelimit.NewMemoryLimiter(newsletterPolicy)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}

	openAPIFile := constants.OpenAPIFile
	if _, err := os.Stat(openAPIFile); err != nil {
		lg.Warn("openapi document not found, docs disabled", zap.String("path", openAPIFile))
		openAPIFile = ""
	}

	app := fiber.New(fiber.Config{
		AppName:      "Payline",
		BodyLimit:    bodyLimit,
		ErrorHandler: apierror.ErrorHandler(lg, controllers.ErrorMappers()...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	router.InstallRouter(app, router.Deps{
		Config:            cfg,
		Log:               lg,
		OpenAPIFile:       openAPIFile,
		Verifier:          verifier,
		Users:             directory,
		ContactLimiter:    contactLimiter,
		NewsletterLimiter: newsletterLimiter,
		LimiterStorage:    limiterStorage,
		Payments:          controllers.NewPaymentController(billingSvc, repos.Payment),
		Webhooks: controllers.NewWebhookController(recorder, identityWebhooks, directory,
			cfg.Stripe.WebhookSecret, billingSvc.Events, lg),
		Contacts: controllers.NewContactController(repos.Contact, hcaptcha.NewVerifier(cfg.HCaptchaSecret),
			mail.NewSMTPMailer(cfg.Mail, lg), cfg.ContactNotifyEmail, lg),
		Newsletter: controllers.NewNewsletterController(repos.Newsletter, lg),
		UsersCtl:   controllers.NewUserController(repos.User, lg),
		Health: controllers.NewHealthController(sqlDB.PingContext,
			func(ctx context.Context) error { return rdb.Ping(ctx).Err() }, lg),
	})

	return &Application{App: app, db: db, redis: rdb, log: lg}, nil
}

// Close releases the database and Redis connections.
func (a *Application) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
	}
}
