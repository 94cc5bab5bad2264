// Package archive stores a copy of webhook events that reached a
// terminal state. The archive is append-mostly and lives in MongoDB so
// the relational events table can be pruned without losing history.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hookd/internal/constants"
)

type Record struct {
	EventID      string                 `bson:"_id"`
	ReceiverID   string                 `bson:"receiver_id"`
	UserID       string                 `bson:"user_id,omitempty"`
	Payload      map[string]interface{} `bson:"payload,omitempty"`
	Response     map[string]interface{} `bson:"response,omitempty"`
	ResponseCode int                    `bson:"response_code"`
	Created      time.Time              `bson:"created"`
	ArchivedAt   time.Time              `bson:"archived_at"`
}

type Archiver interface {
	Archive(ctx context.Context, rec Record) error
	Find(ctx context.Context, eventID string) (*Record, error)
}

type mongoArchiver struct {
	collection *mongo.Collection
}

func NewMongoArchiver(db *mongo.Database) Archiver {
	return &mongoArchiver{
		collection: db.Collection(constants.DefaultArchiveColl),
	}
}

func (a *mongoArchiver) Archive(ctx context.Context, rec Record) error {
	rec.ArchivedAt = time.Now()

	filter := bson.M{"_id": rec.EventID}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)

	if _, err := a.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}

	return nil
}

func (a *mongoArchiver) Find(ctx context.Context, eventID string) (*Record, error) {
	filter := bson.M{"_id": eventID}

	var rec Record
	err := a.collection.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find archived event: %w", err)
	}

	return &rec, nil
}

// NoopArchiver is used when no archive store is configured.
type NoopArchiver struct{}

func (NoopArchiver) Archive(ctx context.Context, rec Record) error { return nil }

func (NoopArchiver) Find(ctx context.Context, eventID string) (*Record, error) {
	return nil, nil
}

