package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateBooking = errors.New("booking already recorded for this payment")
)

const (
	ProfileTable  = "profiles"
	VenuesTable   = "venues"
	BookingsTable = "bookings"
)

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	// service role client, bypasses RLS; used by the webhook path
	serviceClient *supabase.Client
	url           string
	key           string
}

func SupabaseNewRepo(supabaseClient, serviceClient *supabase.Client, url, key string) *SupabaseRepo {
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		serviceClient:  serviceClient,
		url:            url,
		key:            key,
	}
}

// GetAuthenticatedClient returns a Supabase client with the given access token
func (su *SupabaseRepo) GetAuthenticatedClient(accessToken string) (*supabase.Client, error) {
	if accessToken == "" || su.url == "" || su.key == "" {
		return su.supabaseClient, nil
	}

	options := &supabase.ClientOptions{
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
		},
	}

	return supabase.NewClient(su.url, su.key, options)
}

func (su *SupabaseRepo) privileged() *supabase.Client {
	if su.serviceClient != nil {
		return su.serviceClient
	}
	return su.supabaseClient
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the unique and TTL indexes every mongo-backed collection relies on.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	if err := mdb.ensureBookingIndexes(ctx); err != nil {
		return err
	}
	return mdb.ensureStripeEventIndexes(ctx)
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func PostgresNewRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}
