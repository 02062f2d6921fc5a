package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StripeEventsColName = "stripe_events"
	stripeEventTTL      = 30 * 24 * time.Hour
)

// StripeEventRecord is an audit entry for a verified webhook delivery.
type StripeEventRecord struct {
	EventID    string    `bson:"event_id" json:"event_id"`
	Type       string    `bson:"type" json:"type"`
	SessionID  string    `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Outcome    string    `bson:"outcome" json:"outcome"`
	Deliveries int       `bson:"deliveries" json:"deliveries"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"last_seen_at"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
}

type StripeEventLog interface {
	RecordStripeEvent(ctx context.Context, rec *StripeEventRecord) error
}

func (mdb *MongodbRepo) ensureStripeEventIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(StripeEventsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		{
			Keys: bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("event_id_unique"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating stripe event indexes: %v", err)
	}
	return nil
}

// RecordStripeEvent keeps one audit row per provider event id. Redeliveries bump the
// delivery count and overwrite the outcome.
func (mdb *MongodbRepo) RecordStripeEvent(ctx context.Context, rec *StripeEventRecord) error {
	col, err := mdb.GetCollection(StripeEventsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	rec.LastSeenAt = rec.ReceivedAt
	rec.ExpiresAt = rec.ReceivedAt.Add(stripeEventTTL)

	filter := bson.M{"event_id": rec.EventID}
	update := bson.M{
		"$set": bson.M{
			"type":         rec.Type,
			"session_id":   rec.SessionID,
			"outcome":      rec.Outcome,
			"last_seen_at": rec.LastSeenAt,
			"expires_at":   rec.ExpiresAt,
		},
		"$setOnInsert": bson.M{"received_at": rec.ReceivedAt},
		"$inc":         bson.M{"deliveries": 1},
	}

	_, err = col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// two concurrent first deliveries race on the upsert; the loser's row already exists
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("error recording stripe event: %v", err)
	}
	return nil
}
