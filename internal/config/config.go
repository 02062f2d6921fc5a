package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultFrontendURL = "http://localhost:3000"

	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	ImagesSupabase   = "supabase"
	ImagesCloudinary = "cloudinary"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	SupabaseURL            string `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey        string `envconfig:"SUPABASE_URL_ANON_KEY" required:"true"`
	SupabaseServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWKSURL        string `envconfig:"SUPABASE_JWKS_URL"`
	ImageBucket            string `envconfig:"SUPABASE_IMAGE_BUCKET" default:"venue-images"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	Currency            string `envconfig:"CHECKOUT_CURRENCY" default:"usd"`

	// booking store backend: supabase, postgres or mongo
	BookingStore string `envconfig:"BOOKING_STORE" default:"supabase"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	MongoDBURI      string `envconfig:"MONGODB_URI"`
	MongoDBPassword string `envconfig:"MONGODB_PASSWORD"`
	MongoDBName     string `envconfig:"MONGODB_DATABASE" default:"venuebook"`

	ImageBackend        string `envconfig:"IMAGE_BACKEND" default:"supabase"`
	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	RabbitMQURL       string `envconfig:"RABBITMQ_URL"`
	NotifyExchange    string `envconfig:"NOTIFY_EXCHANGE" default:"venuebook.events"`
	NotifyQueue       string `envconfig:"NOTIFY_QUEUE" default:"venuebook.notifications"`
	NotifyMaxAttempts int    `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"5"`

	MailgunDomain string `envconfig:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `envconfig:"MAILGUN_API_KEY"`
	MailFrom      string `envconfig:"MAIL_FROM" default:"Venue Booking <no-reply@venuebook.local>"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	RateLimitBurst int           `envconfig:"RATE_LIMIT_BURST" default:"30"`
	RateLimitEvery time.Duration `envconfig:"RATE_LIMIT_REFILL_EVERY" default:"2s"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	PaymentTimeout time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"SUPABASE_URL", c.SupabaseURL},
		{"SUPABASE_URL_ANON_KEY", c.SupabaseAnonKey},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	c.BookingStore = strings.ToLower(strings.TrimSpace(c.BookingStore))
	c.ImageBackend = strings.ToLower(strings.TrimSpace(c.ImageBackend))

	switch c.BookingStore {
	case StoreSupabase:
		if c.SupabaseServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required for the supabase booking store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres booking store")
		}
	case StoreMongo:
		if c.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo booking store")
		}
	default:
		return fmt.Errorf("unsupported BOOKING_STORE %q (expected supabase, postgres or mongo)", c.BookingStore)
	}

	switch c.ImageBackend {
	case ImagesSupabase:
	case ImagesCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for cloudinary images")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_BACKEND %q (expected supabase or cloudinary)", c.ImageBackend)
	}

	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 10 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.NotifyMaxAttempts < 1 {
		c.NotifyMaxAttempts = 1
	}
	return nil
}

// JWKSURL falls back to the Supabase auth well-known endpoint.
func (c *Config) JWKSURL() string {
	if c.SupabaseJWKSURL != "" {
		return c.SupabaseJWKSURL
	}
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// FrontendOrigins splits the comma separated FRONTEND_URL into browser origins. The
// first entry is where checkout redirects when a request carries no Origin.
func (c *Config) FrontendOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultFrontendURL}
	}
	return origins
}

func (c *Config) PrimaryFrontendURL() string {
	return c.FrontendOrigins()[0]
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// WorkerConfig is what the notification worker reads. It needs no Supabase or Stripe
// credentials.
type WorkerConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	RabbitMQURL       string        `envconfig:"RABBITMQ_URL" required:"true"`
	NotifyExchange    string        `envconfig:"NOTIFY_EXCHANGE" default:"venuebook.events"`
	NotifyQueue       string        `envconfig:"NOTIFY_QUEUE" default:"venuebook.notifications"`
	NotifyMaxAttempts int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"5"`
	NotifyRetryDelay  time.Duration `envconfig:"NOTIFY_RETRY_DELAY" default:"5s"`
	NotifyPrefetch    int           `envconfig:"NOTIFY_PREFETCH" default:"8"`

	MailgunDomain string `envconfig:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `envconfig:"MAILGUN_API_KEY"`
	MailFrom      string `envconfig:"MAIL_FROM" default:"Venue Booking <no-reply@venuebook.local>"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	if cfg.NotifyMaxAttempts < 1 {
		cfg.NotifyMaxAttempts = 1
	}
	return cfg, nil
}

// ToolConfig backs venuectl. Each command checks the settings it uses.
type ToolConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SupabaseURL            string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey        string `envconfig:"SUPABASE_URL_ANON_KEY"`
	SupabaseServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`

	DatabaseURL     string `envconfig:"DATABASE_URL"`
	MongoDBURI      string `envconfig:"MONGODB_URI"`
	MongoDBPassword string `envconfig:"MONGODB_PASSWORD"`
	MongoDBName     string `envconfig:"MONGODB_DATABASE" default:"venuebook"`
}

func LoadToolConfig() (*ToolConfig, error) {
	cfg := &ToolConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
