package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(database.UsersCollection)}
}

func isUsernameConflict(err error) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "username")
}

func (r *ProfileRepository) Create(ctx context.Context, p *models.UserProfile) error {
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	_, err := r.coll.InsertOne(ctx, p)
	if isUsernameConflict(err) {
		return repository.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *ProfileRepository) findOne(ctx context.Context, filter bson.M) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.coll.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"uid": uid})
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *ProfileRepository) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]models.UserProfile, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	profiles := []models.UserProfile{}
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return profiles, nil
}

func (r *ProfileRepository) GetByUIDs(ctx context.Context, uids []string) ([]models.UserProfile, error) {
	if len(uids) == 0 {
		return []models.UserProfile{}, nil
	}
	return r.find(ctx, bson.M{"uid": bson.M{"$in": uids}})
}

func (r *ProfileRepository) Search(ctx context.Context, query, excludeUID string, limit int) ([]models.UserProfile, error) {
	pattern := literalRegex(query)
	filter := bson.M{
		"uid": bson.M{"$ne": excludeUID},
		"$or": bson.A{
			bson.M{"username": pattern},
			bson.M{"display_name": pattern},
			bson.M{"email": pattern},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *ProfileRepository) UsernameTakenByOther(ctx context.Context, username, uid string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"username": username, "uid": bson.M{"$ne": uid}})
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

func (r *ProfileRepository) Update(ctx context.Context, uid string, u *models.ProfileUpdate, lastSeen time.Time) (*models.UserProfile, error) {
	set := bson.M{"last_seen": lastSeen}
	if u.Username != nil {
		set["username"] = *u.Username
	}
	if u.DisplayName != nil {
		set["display_name"] = *u.DisplayName
	}
	if u.Pronouns != nil {
		set["pronouns"] = *u.Pronouns
	}
	if u.Bio != nil {
		set["bio"] = *u.Bio
	}
	if u.Links != nil {
		set["links"] = *u.Links
	}
	if u.BannerColor != nil {
		set["banner_color"] = *u.BannerColor
	}

	var p models.UserProfile
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"uid": uid}, bson.M{"$set": set}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if isUsernameConflict(err) {
		return nil, repository.ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	return &p, nil
}

func (r *ProfileRepository) TouchLastSeen(ctx context.Context, uid string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"uid": uid}, bson.M{"$set": bson.M{"last_seen": at}})
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
