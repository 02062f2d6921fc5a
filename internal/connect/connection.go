package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joshua-takyi/venuebook/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const dialTimeout = 10 * time.Second

// Clients holds every external connection the API opens. Optional backends stay nil
// when they are not configured.
type Clients struct {
	Supabase        *supabase.Client
	SupabaseService *supabase.Client
	Mongo           *mongo.Client
	Postgres        *pgxpool.Pool
	Redis           *redis.Client
	Cloudinary      *cloudinary.Cloudinary
	RabbitMQ        *amqp.Connection
}

// supabase init
func InitSupabase(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %v", err)
	}
	return client, nil
}

// mongo init
func MongoDBConnect(ctx context.Context, uri, password string) (*mongo.Client, error) {
	fullUri := strings.Replace(uri, "<password>", password, 1)

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fullUri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}
	return client, nil
}

func PostgresConnect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %v", err)
	}
	return pool, nil
}

func RedisConnect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %v", addr, err)
	}
	return rdb, nil
}

func CloudinaryCredentials(cloudName, apiKey, apiSecret string) (*cloudinary.Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %v", err)
	}
	return cld, nil
}

func RabbitMQConnect(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}
	return conn, nil
}

// Open dials the backends the configuration asks for. On failure everything opened so
// far is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Clients, error) {
	c := &Clients{}
	fail := func(err error) (*Clients, error) {
		c.Close(context.Background(), logger)
		return nil, err
	}

	var err error
	if c.Supabase, err = InitSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey); err != nil {
		return fail(err)
	}
	if cfg.SupabaseServiceRoleKey != "" {
		if c.SupabaseService, err = InitSupabase(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey); err != nil {
			return fail(err)
		}
	}
	logger.Info("Connected to Supabase successfully", "service_role", c.SupabaseService != nil)

	if cfg.MongoDBURI != "" {
		if c.Mongo, err = MongoDBConnect(ctx, cfg.MongoDBURI, cfg.MongoDBPassword); err != nil {
			return fail(err)
		}
		logger.Info("Connected to MongoDB successfully", "database", cfg.MongoDBName)
	}

	if cfg.DatabaseURL != "" {
		if c.Postgres, err = PostgresConnect(ctx, cfg.DatabaseURL); err != nil {
			return fail(err)
		}
		logger.Info("Connected to Postgres successfully")
	}

	if cfg.RedisAddr != "" {
		if c.Redis, err = RedisConnect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			// rate limiting is optional, so run without it rather than refuse to start
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		} else {
			logger.Info("Connected to Redis successfully", "addr", cfg.RedisAddr)
		}
	}

	if cfg.ImageBackend == config.ImagesCloudinary {
		if c.Cloudinary, err = CloudinaryCredentials(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err != nil {
			return fail(err)
		}
		logger.Info("Cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	}

	if cfg.RabbitMQURL != "" {
		if c.RabbitMQ, err = RabbitMQConnect(cfg.RabbitMQURL); err != nil {
			return fail(err)
		}
		logger.Info("Connected to RabbitMQ successfully")
	}
	return c, nil
}

func (c *Clients) Close(ctx context.Context, logger *slog.Logger) {
	var errs []error
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(ctx, dialTimeout)
		if err := c.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect MongoDB: %v", err))
		}
		cancel()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %v", err))
		}
	}
	if c.RabbitMQ != nil && !c.RabbitMQ.IsClosed() {
		if err := c.RabbitMQ.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close RabbitMQ: %v", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error("Error closing connections", "error", err)
	}
}
