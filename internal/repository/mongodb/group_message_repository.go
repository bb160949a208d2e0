package mongodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

type GroupMessageRepository struct {
	coll *mongo.Collection
}

func NewGroupMessageRepository(db *mongo.Database) *GroupMessageRepository {
	return &GroupMessageRepository{coll: db.Collection(database.GroupMessagesCollection)}
}

func (r *GroupMessageRepository) Create(ctx context.Context, m *models.GroupMessage) error {
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to create group message: %w", err)
	}
	return nil
}

func (r *GroupMessageRepository) List(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error) {
	filter := bson.M{"group_id": groupID}
	if before != nil {
		filter["timestamp"] = bson.M{"$lt": *before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get group messages: %w", err)
	}

	messages := []models.GroupMessage{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode group messages: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *GroupMessageRepository) Latest(ctx context.Context, groupID string) (*models.GroupMessage, error) {
	var m models.GroupMessage
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	err := r.coll.FindOne(ctx, bson.M{"group_id": groupID}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest group message: %w", err)
	}
	return &m, nil
}

func (r *GroupMessageRepository) CountUnreadSince(ctx context.Context, groupID, uid string, since time.Time) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"group_id":  groupID,
		"timestamp": bson.M{"$gt": since},
		"read_by":   bson.M{"$ne": uid},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread group messages: %w", err)
	}
	return n, nil
}

func (r *GroupMessageRepository) MarkRead(ctx context.Context, groupID, messageID, uid string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "group_id": groupID},
		bson.M{"$addToSet": bson.M{"read_by": uid}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark group message as read: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *GroupMessageRepository) MarkAllRead(ctx context.Context, groupID, uid string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"group_id": groupID, "read_by": bson.M{"$ne": uid}},
		bson.M{"$addToSet": bson.M{"read_by": uid}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark group messages as read: %w", err)
	}
	return res.ModifiedCount, nil
}
