package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(database.MessagesCollection)}
}

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.DirectMessage) error {
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) Between(ctx context.Context, a, b string) ([]models.DirectMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := r.coll.Find(ctx, pairFilter(a, b), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := []models.DirectMessage{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) Latest(ctx context.Context, a, b string) (*models.DirectMessage, error) {
	var m models.DirectMessage
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	err := r.coll.FindOne(ctx, pairFilter(a, b), opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}
	return &m, nil
}

func (r *MessageRepository) Recipients(ctx context.Context, uid string) ([]string, error) {
	return distinctValues(ctx, r.coll, bson.M{"sender_id": uid}, "receiver_id")
}

func (r *MessageRepository) Senders(ctx context.Context, uid string) ([]string, error) {
	return distinctValues(ctx, r.coll, bson.M{"receiver_id": uid}, "sender_id")
}

func (r *MessageRepository) CountUnread(ctx context.Context, senderID, receiverID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"sender_id": senderID, "receiver_id": receiverID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"sender_id": senderID, "receiver_id": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MessageRepository) ImageIDsBetween(ctx context.Context, a, b string) ([]string, error) {
	filter := pairFilter(a, b)
	filter["image_id"] = bson.M{"$exists": true, "$nin": bson.A{nil, ""}}
	opts := options.Find().SetProjection(bson.M{"image_id": 1})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get image ids: %w", err)
	}

	var docs []struct {
		ImageID string `bson:"image_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode image ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ImageID)
	}
	return ids, nil
}

func (r *MessageRepository) DeleteBetween(ctx context.Context, a, b string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, pairFilter(a, b))
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return res.DeletedCount, nil
}
