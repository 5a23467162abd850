package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoClient wraps mongo.Client and exposes the chat collections.
type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, uri, database string) (*MongoClient, error) {
	if database == "" {
		database = "chat_db"
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{client: client, db: client.Database(database)}, nil
}

// UsersCollection returns the users collection.
func (c *MongoClient) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ChatsCollection returns the chats collection.
func (c *MongoClient) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// MessagesCollection returns the messages collection.
func (c *MongoClient) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// CountersCollection holds one document per sequence used to hand out
// monotonically increasing integer ids.
func (c *MongoClient) CountersCollection() *mongo.Collection {
	return c.db.Collection("counters")
}

// Drop removes every chat collection. Tests use it to start clean.
func (c *MongoClient) Drop(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{
		c.UsersCollection(), c.ChatsCollection(), c.MessagesCollection(), c.CountersCollection(),
	} {
		if err := coll.Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects from MongoDB.
func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes provisions the uniqueness constraints and lookup indexes.
// Index creation is idempotent for identical specs.
func (c *MongoClient) CreateIndexes(ctx context.Context) error {
	_, err := c.UsersCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// One chat per canonical pair.
	_, err = c.ChatsCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user1_id", Value: 1}, {Key: "user2_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user2_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create chats indexes: %w", err)
	}

	_, err = c.MessagesCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}
	return nil
}
