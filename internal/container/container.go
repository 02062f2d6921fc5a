package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/joshua-takyi/venuebook/internal/connect"
	"github.com/joshua-takyi/venuebook/internal/helpers"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/notify"
	"github.com/joshua-takyi/venuebook/internal/payments"
	"github.com/joshua-takyi/venuebook/internal/services"
	"github.com/joshua-takyi/venuebook/supabase"
)

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config

	UserService     *services.UserService
	VenueService    *services.VenuesService
	VenuePDFService *services.VenuePDFService
	CheckoutService *services.CheckoutService
	WebhookService  *services.WebhookService
	BookingsService *services.BookingsService

	// RateLimiter is nil when Redis is not configured.
	RateLimiter middleware.Limiter

	closers []func(ctx context.Context) error
}

// NewContainer wires repositories and services on top of the opened clients.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients *connect.Clients) (*Container, error) {
	c := &Container{Logger: logger, Config: cfg}

	// Initialize repositories
	supa := models.SupabaseNewRepo(clients.Supabase, clients.SupabaseService, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	var mongoRepo *models.MongodbRepo
	if clients.Mongo != nil {
		mongoRepo = models.MongodbNewRepo(clients.Mongo, cfg.MongoDBName)
	}

	bookings, err := bookingStore(cfg, supa, mongoRepo, clients)
	if err != nil {
		return nil, err
	}
	var migrator supabase.Execer
	if clients.Postgres != nil {
		migrator = clients.Postgres
	}
	if err := ensureBookingStore(ctx, bookings, migrator, logger); err != nil {
		return nil, err
	}

	images, err := imageStore(cfg, clients)
	if err != nil {
		return nil, err
	}

	notifier, err := c.notifier(cfg, clients)
	if err != nil {
		return nil, err
	}

	var verifier services.TokenVerifier
	jwks, err := helpers.NewJWKSVerifier(ctx, cfg.JWKSURL(), logger)
	if err != nil {
		logger.Warn("JWKS unavailable, tokens will be checked with the auth server", "error", err)
	} else {
		verifier = jwks
		c.closers = append(c.closers, func(context.Context) error { jwks.Close(); return nil })
	}

	gateway := payments.NewStripeGateway(payments.StripeOptions{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	}, logger)

	c.UserService = services.NewUserService(supa, verifier, notifier, logger)
	c.VenueService = services.NewVenuesService(supa, images, notifier, logger)
	c.VenuePDFService = services.NewVenuePDFService(supa, helpers.NewHTTPImageFetcher(10*time.Second), logger)
	c.CheckoutService = services.NewCheckoutService(gateway, c.UserService, services.CheckoutOptions{
		FrontendURL: cfg.PrimaryFrontendURL(),
		Currency:    cfg.Currency,
		Timeout:     cfg.PaymentTimeout,
	}, logger)

	deps := services.WebhookDeps{
		Payments:     gateway,
		Bookings:     bookings,
		Profiles:     supa,
		Venues:       supa,
		Notifier:     notifier,
		StoreTimeout: cfg.StoreTimeout,
	}
	if mongoRepo != nil {
		deps.Audit = mongoRepo
	}
	c.WebhookService = services.NewWebhookService(deps, logger)
	c.BookingsService = services.NewBookingsService(bookings)

	if clients.Redis != nil {
		c.RateLimiter = middleware.NewRedisLimiter(clients.Redis, cfg.RateLimitBurst, cfg.RateLimitEvery)
	}
	return c, nil
}

func bookingStore(cfg *config.Config, supa *models.SupabaseRepo, mongoRepo *models.MongodbRepo, clients *connect.Clients) (models.BookingRepo, error) {
	switch cfg.BookingStore {
	case config.StorePostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("postgres booking store selected but DATABASE_URL is not connected")
		}
		return models.PostgresNewRepo(clients.Postgres), nil
	case config.StoreMongo:
		if mongoRepo == nil {
			return nil, fmt.Errorf("mongo booking store selected but MONGODB_URI is not connected")
		}
		return mongoRepo, nil
	default:
		return supa, nil
	}
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

type indexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

// ensureBookingStore creates the unique stripe_payment_id index the webhook relies on
// for idempotency. Supabase tables get the shipped migrations when DATABASE_URL is
// connected; otherwise they must be migrated with venuectl.
func ensureBookingStore(ctx context.Context, store models.BookingRepo, pg supabase.Execer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch s := store.(type) {
	case schemaEnsurer:
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure bookings schema: %w", err)
		}
	case indexEnsurer:
		if err := s.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
	default:
		if pg == nil {
			logger.Warn("bookings payment index not verified, run venuectl migrate --supabase")
			return nil
		}
		if _, err := supabase.Apply(ctx, pg, supabase.Migrations, logger); err != nil {
			return fmt.Errorf("apply supabase migrations: %w", err)
		}
	}
	return nil
}

func imageStore(cfg *config.Config, clients *connect.Clients) (services.ImageStore, error) {
	if cfg.ImageBackend == config.ImagesCloudinary {
		if clients.Cloudinary == nil {
			return nil, fmt.Errorf("cloudinary image backend selected but not configured")
		}
		return helpers.NewCloudinaryImageStore(clients.Cloudinary, helpers.VenueFolder), nil
	}
	// uploads go through the service role client so storage policies cannot block them
	storageClient := clients.Supabase
	if clients.SupabaseService != nil {
		storageClient = clients.SupabaseService
	}
	return helpers.NewSupabaseImageStore(storageClient.Storage, cfg.ImageBucket), nil
}

// notifier publishes to RabbitMQ when a broker is configured and otherwise delivers
// in process.
func (c *Container) notifier(cfg *config.Config, clients *connect.Clients) (services.Notifier, error) {
	if clients.RabbitMQ != nil {
		pub, err := notify.NewQueuePublisher(clients.RabbitMQ, cfg.NotifyExchange)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return pub.Close() })
		return pub, nil
	}

	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailFrom, c.Logger), notify.DispatcherOptions{
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, c.Logger)
	c.closers = append(c.closers, dispatcher.Close)
	return dispatcher, nil
}

// Close drains the notifier and stops background refreshes, newest first.
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.Logger.Error("Error during shutdown", "error", err)
		}
	}
}
