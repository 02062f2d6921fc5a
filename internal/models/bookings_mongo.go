package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const BookingsColName = "bookings"

type bookingDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	ConfirmedBooking `bson:",inline"`
}

func (mdb *MongodbRepo) ensureBookingIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "stripe_payment_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("stripe_payment_id_unique"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "start_date", Value: -1},
			},
			Options: options.Index().SetName("user_start_date_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating booking indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) InsertBookingIfAbsent(ctx context.Context, booking *ConfirmedBooking) error {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	doc := bookingDocument{ID: primitive.NewObjectID(), ConfirmedBooking: *booking}
	if _, err := col.InsertOne(ctx, doc); err != nil {
		// the unique index on stripe_payment_id makes a redelivered event a no-op
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("error inserting booking: %v", err)
	}
	booking.ID = doc.ID.Hex()
	return nil
}

func (mdb *MongodbRepo) ListBookingsByUser(ctx context.Context, userID string) ([]*ConfirmedBooking, error) {
	col, err := mdb.GetCollection(BookingsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	cursor, err := col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding bookings: %v", err)
	}
	defer cursor.Close(ctx)

	var bookings []*ConfirmedBooking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding booking: %v", err)
		}
		b := doc.ConfirmedBooking
		b.ID = doc.ID.Hex()
		bookings = append(bookings, &b)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %v", err)
	}
	return bookings, nil
}
