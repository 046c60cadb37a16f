package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrTokenNotFound = fmt.Errorf("durable tier: %w", domain.ErrTokenNotFound)

type tokenDocument struct {
	SessionID string    `bson:"session_id"`
	Token     string    `bson:"checkout_token"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoTokenRepository is the durable tier of checkout token storage. It
// outlives the session tier and has no versioning; the last write wins.
type MongoTokenRepository struct {
	collection *mongo.Collection
}

func NewMongoTokenRepository(db *mongo.Database) *MongoTokenRepository {
	return &MongoTokenRepository{
		collection: db.Collection("checkout_tokens"),
	}
}

func (m *MongoTokenRepository) Get(ctx context.Context, sessionID string) (string, error) {
	var doc tokenDocument

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to get checkout token: %w", err)
	}
	if doc.Token == "" {
		return "", ErrTokenNotFound
	}
	return doc.Token, nil
}

func (m *MongoTokenRepository) Set(ctx context.Context, sessionID string, token string) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$set": tokenDocument{
		SessionID: sessionID,
		Token:     token,
		UpdatedAt: time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert checkout token: %w", err)
	}
	return nil
}

func (m *MongoTokenRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete checkout token: %w", err)
	}
	return nil
}

func (m *MongoTokenRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60), // 30 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
