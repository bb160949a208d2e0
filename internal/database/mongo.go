package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names shared by the document repositories and the index migrator.
const (
	UsersCollection         = "users"
	MessagesCollection      = "messages"
	GroupsCollection        = "groups"
	GroupMessagesCollection = "group_messages"
)

// MongoDB is the process-wide document store handle. It is built once at
// startup and handed to everything that needs it.
type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, name string) (*MongoDB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDB{Client: client, DB: client.Database(name)}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// Indexes lists the indexes each collection needs.
var Indexes = map[string][]mongo.IndexModel{
	UsersCollection: {
		{Keys: bson.D{{Key: "uid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	MessagesCollection: {
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
	},
	GroupsCollection: {
		{Keys: bson.D{{Key: "members", Value: 1}, {Key: "updated_at", Value: -1}}},
	},
	GroupMessagesCollection: {
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	},
}

// EnsureIndexes creates the collections and their indexes. It is safe to run repeatedly.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	for name, indexes := range Indexes {
		// CreateCollection fails when the collection already exists; that is fine
		_ = m.DB.CreateCollection(ctx, name)
		if _, err := m.DB.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}
