package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

type GroupRepository struct {
	coll *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) *GroupRepository {
	return &GroupRepository{coll: db.Collection(database.GroupsCollection)}
}

func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	if _, err := r.coll.InsertOne(ctx, g); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

func (r *GroupRepository) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]models.Group, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, nil
}

func (r *GroupRepository) ListByMember(ctx context.Context, uid string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return r.find(ctx, bson.M{"members": uid}, opts)
}

func (r *GroupRepository) Search(ctx context.Context, query, uid string, limit int) ([]models.Group, error) {
	pattern := literalRegex(query)
	filter := bson.M{
		"members": bson.M{"$ne": uid},
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// conditional applies update when filter still matches. When nothing matched
// it tells a missing group apart from a failed guard.
func (r *GroupRepository) conditional(ctx context.Context, groupID string, filter, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": groupID})
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, uid string, at time.Time) error {
	filter := bson.M{
		"_id":     groupID,
		"members": bson.M{"$ne": uid},
		"$expr":   bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$max_members"}},
	}
	update := bson.M{
		"$push": bson.M{"members": uid},
		"$set":  bson.M{"updated_at": at},
	}
	return r.conditional(ctx, groupID, filter, update)
}

func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, uid string, at time.Time) error {
	filter := bson.M{
		"_id":     groupID,
		"members": uid,
		"$nor": bson.A{
			bson.M{"$and": bson.A{
				bson.M{"admins": uid},
				bson.M{"admins": bson.M{"$size": 1}},
			}},
		},
	}
	update := bson.M{
		"$pull": bson.M{"members": uid, "admins": uid},
		"$set":  bson.M{"updated_at": at},
	}
	return r.conditional(ctx, groupID, filter, update)
}

func (r *GroupRepository) UpdateInfo(ctx context.Context, groupID string, u *models.GroupUpdate, at time.Time) (*models.Group, error) {
	set := bson.M{"updated_at": at}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.AvatarURL != nil {
		set["avatar_url"] = *u.AvatarURL
	}

	var g models.Group
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": groupID}, bson.M{"$set": set}, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return &g, nil
}

func (r *GroupRepository) Touch(ctx context.Context, groupID string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": bson.M{"updated_at": at}})
	if err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
